package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeItemID(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		title string
		want  string
	}{
		{"url with query", "https://store.example/en-US/p/Some-Game?lang=en", "Ignored", "some-game"},
		{"trailing slash", "https://store.example/p/cool-title/", "", "cool-title"},
		{"fragment", "https://store.example/p/thing#reviews", "", "thing"},
		{"relative path", "/p/relative-one", "", "relative-one"},
		{"no path falls back to name", "https://store.example/", "  Some   Game ", "some-game"},
		{"empty url uses name", "", "Some Game", "some-game"},
		{"both empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeItemID(tt.url, tt.title))
		})
	}
}

func TestNormalizeItemID_URLAndNameAgree(t *testing.T) {
	assert.Equal(t,
		NormalizeItemID("https://store.example/en-US/p/some-game?lang=en", ""),
		NormalizeItemID("", "Some Game"))
}
