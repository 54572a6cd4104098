package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGravatar_URLFor(t *testing.T) {
	g := NewGravatar()

	// md5("myemailaddress@example.com") from the gravatar docs
	want := "https://www.gravatar.com/avatar/0bc83cb571cd1c50ba6f3e8a78ef1346?d=mm&r=pg&s=200"
	assert.Equal(t, want, g.URLFor("MyEmailAddress@example.com "))
	assert.Equal(t, g.URLFor("myemailaddress@example.com"), g.URLFor("  MYEMAILADDRESS@EXAMPLE.COM"))
}

func TestGravatar_EmptyEmailUsesFallback(t *testing.T) {
	g := Gravatar{}
	assert.Equal(t, DefaultBaseURL+"00000000000000000000000000000000", g.URLFor(""))
}

func TestGravatar_CustomBase(t *testing.T) {
	g := Gravatar{BaseURL: "https://img.example.com/a", Size: 80}
	assert.Equal(t, "https://img.example.com/a/0bc83cb571cd1c50ba6f3e8a78ef1346?s=80", g.URLFor("myemailaddress@example.com"))
}
