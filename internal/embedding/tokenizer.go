package embedding

// Tokenizer produces token IDs for BERT-style models
// (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer is a whitespace tokenizer with hash-based token IDs.
// Not vocabulary-accurate; embeddings remain deterministic per input, which
// is what retrieval needs.
type HashTokenizer struct{}

// Tokenize splits text on whitespace and produces padded token IDs up to maxTokens.
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = 101 // [CLS]
	attentionMask[0] = 1

	pos := 1
	word := ""
	emit := func(w string) {
		if pos >= maxTokens-1 {
			return
		}
		inputIDs[pos] = int64(hashText(w) % 30000)
		attentionMask[pos] = 1
		pos++
	}
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if word != "" {
				emit(word)
				word = ""
			}
			continue
		}
		word += string(r)
	}
	if word != "" {
		emit(word)
	}
	if pos < maxTokens {
		inputIDs[pos] = 102 // [SEP]
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}
