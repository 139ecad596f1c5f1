package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientKey(t *testing.T) {
	assert.Equal(t, "customfields_warnings_12_u1", TransientKey(12, "u1"))
	assert.NotEqual(t, TransientKey(12, "u1"), TransientKey(12, "u2"))
	assert.NotEqual(t, TransientKey(12, "u1"), TransientKey(13, "u1"))
}

func TestWarnings_FlushAndRetrieveOnce(t *testing.T) {
	c := NewCenter(time.Minute)
	key := TransientKey(5, "editor")

	n := c.Request().SetTransientKey(key)
	n.QueueUserWarning("Full name is too short.", "").
		QueueFieldWarning("full_name", "").
		QueueFieldWarning("full_name", "")

	// Nothing is visible until the request flushes.
	assert.Nil(t, c.RetrieveWarnings(key))
	n.Flush()

	next := c.Request().SetTransientKey(key)
	w := next.RetrieveWarnings("")
	require.NotNil(t, w)
	assert.Equal(t, []string{"Full name is too short."}, w.Messages)
	assert.Equal(t, []string{"full_name"}, w.Elements)

	assert.Nil(t, next.RetrieveWarnings(""), "warnings are single-read")
}

func TestWarnings_ExplicitKeysAreSeparate(t *testing.T) {
	c := NewCenter(time.Minute)
	n := c.Request().SetTransientKey("default")
	n.QueueUserWarning("a", "")
	n.QueueUserWarning("b", "other")
	n.Flush()

	assert.Equal(t, []string{"a"}, c.RetrieveWarnings("default").Messages)
	other := c.RetrieveWarnings("other")
	require.NotNil(t, other)
	assert.Equal(t, []string{"b"}, other.Messages)
	assert.Empty(t, other.Elements)
}

func TestWarnings_FlushReplacesBucket(t *testing.T) {
	c := NewCenter(time.Minute)
	first := c.Request().SetTransientKey("k")
	first.QueueUserWarning("old", "")
	first.Flush()

	second := c.Request().SetTransientKey("k")
	second.QueueUserWarning("new", "")
	second.Flush()

	assert.Equal(t, []string{"new"}, c.RetrieveWarnings("k").Messages)
}

func TestWarnings_Expire(t *testing.T) {
	c := NewCenter(20 * time.Millisecond)
	n := c.Request().SetTransientKey("k")
	n.QueueUserWarning("soon gone", "")
	n.Flush()

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, c.RetrieveWarnings("k"))
}

func TestWarnings_RetrieveDoesNotCreateBucket(t *testing.T) {
	c := NewCenter(time.Minute)
	n := c.Request().SetTransientKey("k")
	assert.Nil(t, n.RetrieveWarnings(""))
	n.Flush()
	assert.Nil(t, c.RetrieveWarnings("k"))
}

func TestAdminNotices(t *testing.T) {
	c := NewCenter(0)
	c.Request().QueueAdminNotice("definition person is broken")
	c.QueueAdminNotice("definition person is broken")
	c.QueueAdminNotice("no definitions")

	notices := c.AdminNotices()
	require.Len(t, notices, 2)
	assert.Equal(t, "definition person is broken", notices[0].Message)
	assert.NotEmpty(t, notices[0].ID)

	assert.True(t, c.DismissNotice(notices[0].ID))
	assert.False(t, c.DismissNotice(notices[0].ID))
	assert.Len(t, c.AdminNotices(), 1)
}

func TestPending(t *testing.T) {
	n := NewCenter(0).Request().SetTransientKey("k")
	n.QueueUserWarning("m", "").QueueFieldWarning("f", "")
	p := n.Pending("")
	assert.Equal(t, []string{"m"}, p.Messages)
	assert.Equal(t, []string{"f"}, p.Elements)
}
