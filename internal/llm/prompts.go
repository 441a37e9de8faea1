package llm

import (
	"fmt"
	"strings"

	"github.com/hyperjump/seisan/internal/models"
)

// promptHistoryTail is how many trailing conversation messages are included
// in the generation prompt. The session store keeps more; the prompt stays
// small on purpose.
const promptHistoryTail = 4

const analysisSystemPrompt = `You are an expert AI assistant specializing in corporate expense reimbursement analysis. Your role is to analyze employee invoices against company policies and make accurate reimbursement determinations.

DECISION CATEGORIES:
- "Fully Reimbursed": Invoice fully complies with policy
- "Partially Reimbursed": Some items comply, others don't
- "Declined": Invoice violates policy or lacks proper documentation

Always provide clear, professional explanations for your decisions.`

const chatSystemPrompt = `You are a helpful AI assistant for an Invoice Reimbursement System. Your role is to help users find and understand information about processed employee invoices and reimbursement decisions.

- Be conversational, helpful, and professional
- Format responses with markdown for better readability
- Only discuss information from processed invoices in the system
- Don't make up or assume information not in the retrieved data`

// buildAnalysisPrompt renders the invoice analysis prompt. The response must
// be a JSON object with the exact fields parseAnalysis expects.
func buildAnalysisPrompt(invoiceText, policyText, employeeName string) string {
	var b strings.Builder
	b.WriteString("You are analyzing an employee expense reimbursement request. Please review the policy and invoice carefully.\n\n")
	b.WriteString("COMPANY REIMBURSEMENT POLICY:\n")
	b.WriteString(policyText)
	b.WriteString("\n\nEMPLOYEE INFORMATION:\nEmployee Name: ")
	b.WriteString(employeeName)
	b.WriteString("\n\nINVOICE DETAILS:\n")
	b.WriteString(invoiceText)
	b.WriteString(`

ANALYSIS TASK:
Analyze this invoice against the company policy and determine the appropriate reimbursement status. Consider policy compliance, documentation, reasonable amounts, business purpose, and approval requirements.

REQUIRED OUTPUT FORMAT:
Respond with a valid JSON object containing exactly these fields:

{
    "status": "Fully Reimbursed" | "Partially Reimbursed" | "Declined",
    "reason": "Detailed explanation of your decision and reasoning",
    "reimbursable_amount": "Numeric amount eligible for reimbursement (e.g., 125.50)",
    "total_amount": "Total invoice amount (e.g., 150.00)",
    "policy_violations": ["List of specific policy violations if any"],
    "compliance_notes": "Additional compliance information and recommendations"
}

IMPORTANT GUIDELINES:
- Be precise with amounts (use numbers only, no currency symbols)
- Provide specific, actionable explanations
- Quote relevant policy sections when applicable
- Maintain professional, objective tone`)
	return b.String()
}

// buildChatPrompt renders the RAG prompt: recent history, retrieved invoice
// lines, and the user question.
func buildChatPrompt(query string, contextItems []models.ContextItem, history []models.ChatMessage) string {
	var historyText strings.Builder
	tail := history
	if len(tail) > promptHistoryTail {
		tail = tail[len(tail)-promptHistoryTail:]
	}
	for i, msg := range tail {
		if i > 0 {
			historyText.WriteByte('\n')
		}
		historyText.WriteString(msg.Role)
		historyText.WriteString(": ")
		historyText.WriteString(msg.Content)
	}

	var contextText strings.Builder
	for i, item := range contextItems {
		if i > 0 {
			contextText.WriteByte('\n')
		}
		contextText.WriteString(fmt.Sprintf("Invoice %s: %s", item.InvoiceID, item.Summary))
	}

	var b strings.Builder
	b.WriteString("Answer user questions about processed invoices.\n\n")
	b.WriteString("PREVIOUS CONVERSATION:\n")
	b.WriteString(historyText.String())
	b.WriteString("\n\nRELEVANT INVOICE DATA:\n")
	b.WriteString(contextText.String())
	b.WriteString("\n\nUSER QUESTION: ")
	b.WriteString(query)
	b.WriteString(`

INSTRUCTIONS:
- Provide helpful, accurate responses about invoice data
- Use markdown formatting for better readability
- If no relevant data is found, politely explain and suggest alternatives
- Reference specific invoice details when available

RESPONSE:`)
	return b.String()
}
