package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-template-studio/internal/template"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}

func bodyOnly() template.Template {
	return template.Template{Name: "promo_1", Components: template.Components{template.Body{Text: "Hello {{1}}"}}}
}

func TestRequestAdd_InsertsHeaderFirst(t *testing.T) {
	draft, state, err := None().RequestAdd(bodyOnly(), template.FormatImage)
	require.NoError(t, err)

	assert.Equal(t, PendingUpload, state.Kind)
	assert.Equal(t, template.FormatImage, state.Format)
	require.Len(t, draft.Components, 2)
	assert.Equal(t, template.Header{Format: template.FormatImage}, draft.Components[0])
}

func TestRequestAdd_ReinstatesExistingHeader(t *testing.T) {
	tmpl := template.Template{Components: template.Components{
		template.Header{Format: template.FormatText, Text: "Hi"},
		template.Body{Text: "x"},
	}}

	draft, state, err := None().RequestAdd(tmpl, template.FormatVideo)
	require.NoError(t, err)
	assert.Equal(t, PendingUpload, state.Kind)
	require.Len(t, draft.Components, 2)
	assert.Equal(t, template.Header{Format: template.FormatVideo}, draft.Components[0])
}

func TestRequestAdd_RejectsFromMediaStates(t *testing.T) {
	draft, state, err := None().RequestAdd(bodyOnly(), template.FormatImage)
	require.NoError(t, err)

	_, same, err := state.RequestAdd(draft, template.FormatVideo)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state, same)

	_, _, err = None().RequestAdd(bodyOnly(), template.FormatText)
	assert.ErrorIs(t, err, template.ErrInvalidValue)
}

func TestChangeType_ClearsAsset(t *testing.T) {
	for _, from := range []template.Format{template.FormatImage, template.FormatVideo, template.FormatDocument} {
		for _, to := range []template.Format{template.FormatImage, template.FormatVideo, template.FormatDocument} {
			draft, state, err := None().RequestAdd(bodyOnly(), from)
			require.NoError(t, err)
			state, err = state.Attach(NewAsset("sample.bin", "application/pdf", []byte("x")))
			require.NoError(t, err)
			require.NotNil(t, state.Asset)

			draft, state, err = state.ChangeType(draft, to)
			require.NoError(t, err)
			assert.Nil(t, state.Asset, "%s -> %s", from, to)
			assert.Equal(t, PendingUpload, state.Kind)
			assert.Equal(t, to, draft.MediaType())
		}
	}
}

func TestChangeType_RequiresMedia(t *testing.T) {
	_, _, err := None().ChangeType(bodyOnly(), template.FormatVideo)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRemoveRestore_RoundTrip(t *testing.T) {
	for _, f := range []template.Format{template.FormatImage, template.FormatVideo, template.FormatDocument} {
		draft, state, err := None().RequestAdd(bodyOnly(), f)
		require.NoError(t, err)
		state, err = state.Attach(NewAsset("a", "", pngHeader))
		require.NoError(t, err)

		removedDraft, removedState, err := state.RequestRemove(draft)
		require.NoError(t, err)
		assert.Equal(t, MarkedForRemoval, removedState.Kind)
		assert.Nil(t, removedState.Asset)
		h, _, ok := removedDraft.Header()
		require.True(t, ok, "header retained")
		assert.True(t, h.Removed)

		restored, restoredState, err := removedState.Restore(removedDraft)
		require.NoError(t, err)
		h, _, ok = restored.Header()
		require.True(t, ok)
		assert.False(t, h.Removed)
		assert.Equal(t, f, h.Format)
		assert.Equal(t, PendingUpload, restoredState.Kind)
		assert.Equal(t, f, restoredState.Format)
	}
}

func TestRequestAdd_FromMarkedForRemoval(t *testing.T) {
	draft, state, err := None().RequestAdd(bodyOnly(), template.FormatImage)
	require.NoError(t, err)
	draft, state, err = state.RequestRemove(draft)
	require.NoError(t, err)

	draft, state, err = state.RequestAdd(draft, template.FormatDocument)
	require.NoError(t, err)
	assert.Equal(t, PendingUpload, state.Kind)
	assert.Len(t, draft.Components, 2)
	assert.Equal(t, template.FormatDocument, draft.MediaType())
}

func TestAttachDetach(t *testing.T) {
	_, err := None().Attach(NewAsset("a.png", "image/png", pngHeader))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, state, err := None().RequestAdd(bodyOnly(), template.FormatImage)
	require.NoError(t, err)

	data := append([]byte(nil), pngHeader...)
	uploaded, err := state.Attach(NewAsset("a.png", "", data))
	require.NoError(t, err)
	assert.Equal(t, Uploaded, uploaded.Kind)
	assert.Equal(t, "image/png", uploaded.Asset.MimeType)

	data[0] = 0
	assert.Equal(t, byte(0x89), uploaded.Asset.Data[0], "attached bytes are copied")

	_, err = uploaded.Attach(NewAsset("b.png", "image/png", pngHeader))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending, err := uploaded.Detach()
	require.NoError(t, err)
	assert.Equal(t, PendingUpload, pending.Kind)
	assert.Nil(t, pending.Asset)
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, None(), StateFor(bodyOnly()))

	withImage := template.Template{Components: template.Components{template.Header{Format: template.FormatImage}}}
	assert.Equal(t, State{Kind: PendingUpload, Format: template.FormatImage}, StateFor(withImage))

	removed := template.Template{Components: template.Components{template.Header{Format: template.FormatVideo, Removed: true}}}
	assert.Equal(t, State{Kind: MarkedForRemoval, Format: template.FormatVideo}, StateFor(removed))

	text := template.Template{Components: template.Components{template.Header{Format: template.FormatText, Text: "Hi"}}}
	assert.Equal(t, None(), StateFor(text))
}

func TestAccepts(t *testing.T) {
	png := NewAsset("a.png", "", pngHeader)
	assert.True(t, Accepts(template.FormatImage, png))
	assert.False(t, Accepts(template.FormatVideo, png))
	assert.False(t, Accepts(template.FormatDocument, png))

	doc := NewAsset("brochure.docx", "application/zip", []byte("PK"))
	assert.True(t, Accepts(template.FormatDocument, doc))

	pdf := NewAsset("menu", "application/pdf", []byte("%PDF-1.4"))
	assert.True(t, Accepts(template.FormatDocument, pdf))

	assert.Equal(t, "image/*", Accept(template.FormatImage))
	assert.Equal(t, "video/*", Accept(template.FormatVideo))
	assert.Equal(t, ".pdf,.doc,.docx", Accept(template.FormatDocument))
}
