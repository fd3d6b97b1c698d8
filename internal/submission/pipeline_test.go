package submission

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/template"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []Payload
	record  Record
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, p Payload) (Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.record, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func withHeader(f template.Format, removed bool) template.Template {
	h := template.Header{Format: f, Removed: removed}
	if f == template.FormatText {
		h.Text = "Hello"
	}
	return template.Template{
		Name:     "order_update",
		Language: template.Language("en"),
		Category: template.Category("UTILITY"),
		Components: template.Components{
			h,
			template.Body{Text: "Your order {{1}} shipped"},
		},
	}
}

func sampleAsset() media.Asset {
	return media.NewAsset("banner.png", "image/png", []byte{0x89, 0x50, 0x4E, 0x47})
}

func TestValidate_TruthTable(t *testing.T) {
	formats := []template.Format{template.FormatText, template.FormatImage, template.FormatVideo, template.FormatDocument}
	for _, f := range formats {
		for _, removed := range []bool{false, true} {
			for _, hasAsset := range []bool{false, true} {
				state := media.State{Kind: media.PendingUpload, Format: f}
				if hasAsset {
					a := sampleAsset()
					state = media.State{Kind: media.Uploaded, Format: f, Asset: &a}
				}
				if !f.IsMedia() {
					state = media.None()
				}

				res := Validate(withHeader(f, removed), state)
				wantBlocked := f.IsMedia() && !removed && !hasAsset
				assert.Equal(t, !wantBlocked, res.OK(), "format=%s removed=%v asset=%v", f, removed, hasAsset)
				if wantBlocked {
					require.Len(t, res.Reasons, 1)
					assert.Equal(t, ReasonMissingMediaAsset, res.Reasons[0].Code)
					assert.ErrorIs(t, res.Err(), ErrMissingMediaAsset)
				} else {
					assert.NoError(t, res.Err())
				}
			}
		}
	}
}

func TestValidate_NoHeader(t *testing.T) {
	tmpl := template.Template{Components: template.Components{template.Body{Text: "x"}}}
	assert.True(t, Validate(tmpl, media.None()).OK())
}

func TestValidate_MismatchIsWarningOnly(t *testing.T) {
	a := sampleAsset()
	res := Validate(withHeader(template.FormatVideo, false), media.State{Kind: media.Uploaded, Format: template.FormatVideo, Asset: &a})
	assert.True(t, res.OK())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningAssetMismatch, res.Warnings[0].Code)
}

func TestPipeline_MissingMediaNeverCallsBackend(t *testing.T) {
	sub := &fakeSubmitter{}
	p := NewPipeline(sub, zap.NewNop())

	_, err := p.Submit(context.Background(), withHeader(template.FormatImage, false), media.State{Kind: media.PendingUpload, Format: template.FormatImage})
	assert.ErrorIs(t, err, ErrMissingMediaAsset)
	assert.Equal(t, 0, sub.count())
	assert.False(t, p.InFlight())
}

func TestPipeline_PayloadStripsRemovedAndFlagsMedia(t *testing.T) {
	sub := &fakeSubmitter{record: Record{TemplateID: "123"}}
	p := NewPipeline(sub, zap.NewNop())

	tmpl := withHeader(template.FormatImage, true)
	tmpl.Components = append(tmpl.Components, template.Footer{Text: "Thanks", Optional: true, Removed: true})

	rec, err := p.Submit(context.Background(), tmpl, media.State{Kind: media.MarkedForRemoval, Format: template.FormatImage})
	require.NoError(t, err)
	assert.Equal(t, Record{TemplateName: "order_update", TemplateID: "123"}, rec)

	require.Equal(t, 1, sub.count())
	sent := sub.calls[0]
	assert.True(t, sent.RemoveMedia)
	assert.Nil(t, sent.Asset)
	require.Len(t, sent.Template.Components, 1)
	assert.Equal(t, template.ComponentBody, sent.Template.Components[0].Type())

	require.Len(t, tmpl.Components, 3, "draft left intact")
}

func TestPipeline_AttachesUploadedAsset(t *testing.T) {
	sub := &fakeSubmitter{}
	p := NewPipeline(sub, zap.NewNop())

	a := sampleAsset()
	_, err := p.Submit(context.Background(), withHeader(template.FormatImage, false), media.State{Kind: media.Uploaded, Format: template.FormatImage, Asset: &a})
	require.NoError(t, err)

	sent := sub.calls[0]
	assert.False(t, sent.RemoveMedia)
	require.NotNil(t, sent.Asset)
	assert.Equal(t, "banner.png", sent.Asset.Filename)
	assert.Equal(t, template.FormatImage, sent.Template.MediaType())
}

func TestPipeline_RejectsOverlappingSubmit(t *testing.T) {
	sub := &fakeSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	p := NewPipeline(sub, zap.NewNop())
	tmpl := withHeader(template.FormatText, false)

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), tmpl, media.None())
		done <- err
	}()

	<-sub.started
	assert.True(t, p.InFlight())
	_, err := p.Submit(context.Background(), tmpl, media.None())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.count())
	assert.False(t, p.InFlight())
}

func TestPipeline_BackendErrorSurfaces(t *testing.T) {
	backendErr := &BackendError{StatusCode: 400, Message: "name already exists", Suggestion: "pick another name"}
	sub := &fakeSubmitter{err: backendErr}
	p := NewPipeline(sub, zap.NewNop())

	tmpl := withHeader(template.FormatText, false)
	before := template.Clone(tmpl)

	_, err := p.Submit(context.Background(), tmpl, media.None())
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "name already exists (suggestion: pick another name)", err.Error())
	assert.Equal(t, before, tmpl)
	assert.False(t, p.InFlight())
}
