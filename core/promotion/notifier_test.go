package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_replacesCurrent(t *testing.T) {
	n := NewNotifier(time.Minute)
	var seen []Notice
	n.Subscribe(func(notice Notice) { seen = append(seen, notice) })

	first := n.Post(NoticeSuccess, "Student promoted successfully.")
	second := n.Post(NoticeError, "Promotion failed. Please try again.")
	assert.NotEqual(t, first.ID, second.ID)

	cur, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
	assert.Equal(t, NoticeError, cur.Kind)
	assert.Len(t, seen, 2)

	n.Dismiss()
	_, ok = n.Current()
	assert.False(t, ok)
}

func TestNotifier_expires(t *testing.T) {
	n := NewNotifier(20 * time.Millisecond)
	n.Post(NoticeWarning, "7/10 students promoted; 3 require attention", "ADM-011: stream is full")

	cur, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"ADM-011: stream is full"}, cur.Details)

	assert.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNotifier_expireKeepsNewerNotice(t *testing.T) {
	n := NewNotifier(time.Minute)
	old := n.Post(NoticeSuccess, "old")
	n.Post(NoticeSuccess, "new")

	n.expire(old.ID)
	cur, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "new", cur.Message)
}

func TestNoticeKind_String(t *testing.T) {
	tests := []struct {
		kind NoticeKind
		want string
	}{
		{NoticeSuccess, "success"},
		{NoticeWarning, "warning"},
		{NoticeError, "error"},
		{NoticeKind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("NoticeKind.String() = %v, want %v", got, tt.want)
		}
	}
}
