package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/ShayCichocki/sillysearch/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubModel answers Structured with out, err, or blocks until ctx is done.
type stubModel struct {
	out   Output
	err   error
	block bool
}

func (s stubModel) Complete(context.Context, llm.Request) (*llm.Response, error) {
	return nil, errors.New("unused")
}

func (s stubModel) Structured(ctx context.Context, _ llm.StructuredRequest, out any) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	data, _ := json.Marshal(s.out)
	return json.Unmarshal(data, out)
}

func TestSummarize_Success(t *testing.T) {
	s := New(stubModel{out: Output{Summary: "short", KeyExcerpts: "\"quote\""}}, Config{})

	got := s.Summarize(context.Background(), "long page")

	want := "<summary>\nshort\n</summary>\n\n<key_excerpts>\n\"quote\"\n</key_excerpts>"
	assert.Equal(t, want, got)
}

func TestSummarize_FallsBack(t *testing.T) {
	tests := []struct {
		name  string
		model stubModel
	}{
		{"error", stubModel{err: errors.New("rate limited")}},
		{"timeout", stubModel{block: true}},
		{"empty summary", stubModel{out: Output{Summary: "  "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.model, Config{Timeout: 20 * time.Millisecond, MaxContentLength: 10})

			got := s.Summarize(context.Background(), "0123456789abcdef")

			assert.Equal(t, "0123456789", got)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "zaż", Truncate("zażółć", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Len(t, []rune(Truncate(strings.Repeat("ł", 100), 40)), 40)
}
