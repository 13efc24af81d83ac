package lobby

import "math/rand"

// codeAlphabet is the 24-symbol set lobby codes are drawn from. It
// excludes visually ambiguous glyphs (I, O, and all digits).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// CodeLength is the fixed length of a lobby code.
const CodeLength = 8

// GenerateCode returns a fresh lobby code: CodeLength characters sampled
// uniformly from codeAlphabet, re-rolled until taken reports it unused.
//
// Precondition: rng must be non-nil; taken must eventually return false.
// Postcondition: Returns a code for which taken(code) was false.
func GenerateCode(rng *rand.Rand, taken func(code string) bool) string {
	for {
		code := randomCode(rng)
		if !taken(code) {
			return code
		}
	}
}

func randomCode(rng *rand.Rand) string {
	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = codeAlphabet[rng.Intn(len(codeAlphabet))]
	}
	return string(buf)
}
