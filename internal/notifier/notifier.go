package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultTTL is how long a warning bucket survives the redirect after a save.
const DefaultTTL = 30 * time.Second

// Warnings is the contents of one transient bucket.
type Warnings struct {
	Messages []string `json:"messages"`
	Elements []string `json:"elements"`
}

// Notice is an admin-facing configuration message.
type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Center holds process-wide notifier state: admin notices and the
// transient warning buckets.
type Center struct {
	transients *cache.Cache
	ttl        time.Duration

	mu      sync.RWMutex
	notices []Notice
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		transients: cache.New(ttl, 2*ttl),
		ttl:        ttl,
	}
}

// TransientKey derives the bucket key for an entity edited by a user.
func TransientKey(entityID int64, userID string) string {
	return fmt.Sprintf("customfields_warnings_%d_%s", entityID, userID)
}

// QueueAdminNotice records a notice shown on every admin screen until dismissed.
func (c *Center) QueueAdminNotice(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notices {
		if n.Message == message {
			return
		}
	}
	c.notices = append(c.notices, Notice{ID: uuid.New().String(), Message: message, CreatedAt: time.Now()})
	zap.S().Warnf("admin notice: %s", message)
}

// AdminNotices returns the queued notices, oldest first.
func (c *Center) AdminNotices() []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// DismissNotice removes the notice with the given id.
func (c *Center) DismissNotice(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}

// RetrieveWarnings returns and clears the bucket under key. It returns nil
// when the bucket is empty or expired.
func (c *Center) RetrieveWarnings(key string) *Warnings {
	v, ok := c.transients.Get(key)
	if !ok {
		return nil
	}
	c.transients.Delete(key)
	w := v.(Warnings)
	return &w
}

func (c *Center) store(key string, w Warnings) {
	c.transients.Set(key, w, c.ttl)
}

// Request returns a request-scoped notifier. Its warnings reach the
// transient buckets on Flush.
func (c *Center) Request() *Notifier {
	return &Notifier{
		center:        c,
		userWarnings:  make(map[string][]string),
		fieldWarnings: make(map[string][]string),
	}
}

// Notifier collects warnings during one request.
type Notifier struct {
	center       *Center
	transientKey string

	keys          []string
	userWarnings  map[string][]string
	fieldWarnings map[string][]string
}

// SetTransientKey sets the bucket used when a call passes an empty key.
func (n *Notifier) SetTransientKey(key string) *Notifier {
	n.transientKey = key
	return n
}

// TransientKey returns the default bucket key.
func (n *Notifier) TransientKey() string { return n.transientKey }

func (n *Notifier) QueueAdminNotice(message string) *Notifier {
	n.center.QueueAdminNotice(message)
	return n
}

func (n *Notifier) QueueUserWarning(message, key string) *Notifier {
	key = n.resolve(key)
	n.track(key)
	n.userWarnings[key] = append(n.userWarnings[key], message)
	return n
}

func (n *Notifier) QueueFieldWarning(field, key string) *Notifier {
	key = n.resolve(key)
	n.track(key)
	for _, f := range n.fieldWarnings[key] {
		if f == field {
			return n
		}
	}
	n.fieldWarnings[key] = append(n.fieldWarnings[key], field)
	return n
}

// Pending returns what has been queued under key in this request.
func (n *Notifier) Pending(key string) Warnings {
	key = n.resolve(key)
	return Warnings{
		Messages: append([]string{}, n.userWarnings[key]...),
		Elements: append([]string{}, n.fieldWarnings[key]...),
	}
}

// RetrieveWarnings reads and clears a bucket written by an earlier request.
func (n *Notifier) RetrieveWarnings(key string) *Warnings {
	return n.center.RetrieveWarnings(n.resolve(key))
}

// Flush writes every queued bucket to the transient store, replacing what
// was there, and resets the request state.
func (n *Notifier) Flush() {
	for _, key := range n.keys {
		n.center.store(key, Warnings{
			Messages: append([]string{}, n.userWarnings[key]...),
			Elements: append([]string{}, n.fieldWarnings[key]...),
		})
	}
	n.keys = nil
	n.userWarnings = make(map[string][]string)
	n.fieldWarnings = make(map[string][]string)
}

func (n *Notifier) resolve(key string) string {
	if key == "" {
		return n.transientKey
	}
	return key
}

func (n *Notifier) track(key string) {
	for _, k := range n.keys {
		if k == key {
			return
		}
	}
	n.keys = append(n.keys, key)
}
