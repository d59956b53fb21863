// Package notify carries transient viewer-facing notices (banners).
//
// Every flow reports through a Presenter. The web server uses Flash, which
// parks the notice in the viewer's storage scope until the next page render;
// the CLI uses Writer. A new notice replaces the pending one, so at most one
// banner is ever shown.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"evalgo.org/muxsite/internal/storage"
)

// Kind selects the banner variant
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// FlashKey is the storage key holding the pending notice
const FlashKey = "muxFlash"

// Notice is one banner message.
type Notice struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Success, Error, Info and Warning build notices of the matching kind.
func Success(text string) Notice { return Notice{Kind: KindSuccess, Text: text} }
func Error(text string) Notice   { return Notice{Kind: KindError, Text: text} }
func Info(text string) Notice    { return Notice{Kind: KindInfo, Text: text} }
func Warning(text string) Notice { return Notice{Kind: KindWarning, Text: text} }

// Presenter shows a notice to the viewer.
type Presenter interface {
	Present(ctx context.Context, n Notice) error
}

// Flash stores a notice for the next page render of the same scope.
type Flash struct {
	store storage.Storage
}

// NewFlash creates a flash presenter over a scoped storage.
func NewFlash(store storage.Storage) *Flash {
	return &Flash{store: store}
}

// Present replaces any pending notice with n.
func (f *Flash) Present(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	return f.store.SetItem(ctx, FlashKey, string(data))
}

// Pop returns the pending notice and removes it.
// A malformed value is discarded and reported as no notice.
func (f *Flash) Pop(ctx context.Context) (*Notice, error) {
	raw, ok, err := f.store.GetItem(ctx, FlashKey)
	if err != nil || !ok {
		return nil, err
	}
	if err := f.store.RemoveItem(ctx, FlashKey); err != nil {
		return nil, err
	}

	var n Notice
	if err := json.Unmarshal([]byte(raw), &n); err != nil || n.Text == "" {
		return nil, nil
	}
	return &n, nil
}

// Writer prints notices as "[kind] text" lines.
type Writer struct {
	W io.Writer
}

// Present writes n to the underlying writer.
func (w Writer) Present(_ context.Context, n Notice) error {
	_, err := fmt.Fprintf(w.W, "[%s] %s\n", n.Kind, n.Text)
	return err
}
