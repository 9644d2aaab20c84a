package skillloop

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is loaded once: tiktoken-go's BPE table construction is
// expensive enough that building it per Run call would dominate a fast
// local skill invocation's latency.
var (
	tokenEncodingOnce sync.Once
	tokenEncoding     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	tokenEncodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
		tokenEncoding = enc
	})
	return tokenEncoding
}

// estimateTokens counts text's tokens under the cl100k_base encoding, for
// budget/progress logging only: agent CLIs rarely expose their own model's
// real usage over a tmux pane, so this is an approximation, not a billing
// figure. Falls back to a whitespace-ish heuristic if the encoder failed to
// load (offline module cache, unexpected vocab file).
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}
