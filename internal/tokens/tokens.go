// Package tokens estimates prompt sizes without a tokenizer.
package tokens

// BytesPerToken approximates the bytes carried by a single token.
const BytesPerToken = 4

// Estimate returns ceil(len(s)/BytesPerToken).
func Estimate(s string) int {
	return (len(s) + BytesPerToken - 1) / BytesPerToken
}

// EstimateAll sums Estimate over every string.
func EstimateAll(parts ...string) int {
	total := 0
	for _, p := range parts {
		total += Estimate(p)
	}
	return total
}
