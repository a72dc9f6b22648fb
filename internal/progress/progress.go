package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar reports build progress on a terminal. A nil *Bar is valid and does
// nothing, so callers never need to check whether progress is enabled.
type Bar struct {
	bar *progressbar.ProgressBar
}

func New(total int, description string) *Bar {
	return NewWithWriter(os.Stderr, total, description)
}

func NewWithWriter(w io.Writer, total int, description string) *Bar {
	return &Bar{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Describe(description string) {
	if b == nil {
		return
	}
	b.bar.Describe(description)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
