package client

import (
	"net/http"
	"sync"
)

// credentials holds the session tokens outside the cookie jar. The server marks
// its cookies Secure, and a jar withholds Secure cookies from http:// origins.
type credentials struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (c *credentials) get() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.refresh
}

func (c *credentials) hasRefresh() bool {
	_, refresh := c.get()
	return refresh != ""
}

func (c *credentials) setAccess(token string) {
	c.mu.Lock()
	c.access = token
	c.mu.Unlock()
}

// observe applies the session cookies set or cleared by a response.
func (c *credentials) observe(set []*http.Cookie, names cookieNames) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range set {
		value := ck.Value
		if ck.MaxAge < 0 {
			value = ""
		}
		switch ck.Name {
		case names.session:
			c.access = value
		case names.refresh:
			c.refresh = value
		}
	}
}

func (c *credentials) clear() {
	c.mu.Lock()
	c.access, c.refresh = "", ""
	c.mu.Unlock()
}
