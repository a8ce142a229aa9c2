package webhook

import "testing"

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		path      string
		want      string
		wantFound bool
	}{
		{
			name: "dot path hit",
			body: `{"a":{"b":"hi"}}`, path: "a.b",
			want: "hi", wantFound: true,
		},
		{
			name: "dot path missing leaf",
			body: `{"a":{}}`, path: "a.b",
			wantFound: false,
		},
		{
			name: "dot path through non-object",
			body: `{"a":"s"}`, path: "a.b",
			wantFound: false,
		},
		{
			name: "dot path non-string value",
			body: `{"a":{"b":42}}`, path: "a.b",
			wantFound: false,
		},
		{
			name: "probe finds message",
			body: `{"message":"ok"}`,
			want: "ok", wantFound: true,
		},
		{
			name: "probe order prefers reply",
			body: `{"text":"t","reply":"r","message":"m"}`,
			want: "r", wantFound: true,
		},
		{
			name: "probe skips non-string values",
			body: `{"reply":5,"message":"m"}`,
			want: "m", wantFound: true,
		},
		{
			name: "probe no match",
			body: `{"status":"done"}`,
			wantFound: false,
		},
		{
			name: "not json",
			body: `plain text`,
			wantFound: false,
		},
		{
			name: "top level array",
			body: `["reply"]`,
			wantFound: false,
		},
		{
			name: "empty body",
			body: ``,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractReply([]byte(tt.body), tt.path)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}
