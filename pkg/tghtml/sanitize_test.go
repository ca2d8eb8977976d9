package tghtml

import "testing"

func TestSanitize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "allowed kept", in: "<b>hi</b> and <i>there</i>", want: "<b>hi</b> and <i>there</i>"},
		{name: "unknown removed content kept", in: "<div>hi</div>", want: "hi"},
		{name: "nested unknown", in: "<span><b>x</b></span>", want: "<b>x</b>"},
		{name: "attrs stripped", in: `<b class="big">x</b>`, want: "<b>x</b>"},
		{name: "link href kept", in: `<a href="https://example.com" target="_blank">go</a>`, want: `<a href="https://example.com">go</a>`},
		{name: "link without href drops opener keeps closer", in: `<a name="x">go</a>`, want: "go</a>"},
		{name: "pre language kept", in: `<pre language="go">x</pre>`, want: `<pre language="go">x</pre>`},
		{name: "spoiler kept", in: "<tg-spoiler>boo</tg-spoiler>", want: "<tg-spoiler>boo</tg-spoiler>"},
		{name: "img removed", in: `before <img src="x.png"> after`, want: "before  after"},
		{name: "case folded", in: "<B>x</B>", want: "<b>x</b>"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLenCountsRunes(t *testing.T) {
	t.Parallel()
	if got := Len("héllo"); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}
}
