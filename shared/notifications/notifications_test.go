package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `Hello\.World`, EscapeMarkdownV2("Hello.World"))
	assert.Equal(t, `\*bold\* \_it\_ \(x\)`, EscapeMarkdownV2("*bold* _it_ (x)"))
	assert.Equal(t, `100% \#1 \+5 \-3 a\=b`, EscapeMarkdownV2("100% #1 +5 -3 a=b"))
	assert.Equal(t, "plain text", EscapeMarkdownV2("plain text"))
	assert.Equal(t, "", EscapeMarkdownV2(""))
}
