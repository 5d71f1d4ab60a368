// Package token implements the persisted capability-token state machine
// that authorizes control-plane writes.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	sk "github.com/Krillle/SignalKKit"
	"github.com/Krillle/SignalKKit/kv"
)

// Persisted keys. State survives restarts; clientId additionally travels to
// the user's other devices when the kv backend syncs.
const (
	keyClientID    = "clientId"
	keyToken       = "token"
	keyExpiration  = "tokenExpiration"
	keyPendingHref = "pendingRequestHref"
	keyDenied      = "denied"
)

const (
	statePending       = "PENDING"
	stateCompleted     = "COMPLETED"
	permissionApproved = "APPROVED"
	permissionDenied   = "DENIED"
)

type requestResponse struct {
	State      string `json:"state,omitempty"`
	Href       string `json:"href,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

type requestStatus struct {
	State         string         `json:"state"`
	StatusCode    int            `json:"statusCode,omitempty"`
	Message       string         `json:"message,omitempty"`
	AccessRequest *accessOutcome `json:"accessRequest,omitempty"`
}

type accessOutcome struct {
	Permission     string `json:"permission"`
	Token          string `json:"token,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
}

// Options configures a Store.
type Options struct {
	BaseURL     string // control-plane origin, e.g. http://boat.local:3000
	RequestPath string // access-request endpoint
	Description string // shown to the operator approving the request
	HTTP        *http.Client
	Timeout     time.Duration // used when HTTP is nil
}

// Store owns the access-token lifecycle: request, poll, approve, deny,
// expire. One mutex serializes the whole acquisition cycle, so overlapping
// callers wait for the outcome already in flight instead of issuing
// duplicate requests.
type Store struct {
	mu   sync.Mutex
	kv   kv.Store
	http *http.Client
	base string
	path string
	desc string
}

func New(kvs kv.Store, o Options) *Store {
	if o.RequestPath == "" {
		o.RequestPath = "/signalk/v1/access/requests"
	}
	if o.Description == "" {
		o.Description = "SignalKKit client"
	}
	c := o.HTTP
	if c == nil {
		t := o.Timeout
		if t <= 0 {
			t = 15 * time.Second
		}
		c = &http.Client{Timeout: t}
	}
	return &Store{
		kv:   kvs,
		http: c,
		base: strings.TrimRight(o.BaseURL, "/"),
		path: o.RequestPath,
		desc: o.Description,
	}
}

// ClientID returns the stable identity sent on access requests, generating
// and persisting one on first use.
func (s *Store) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientIDLocked()
}

func (s *Store) clientIDLocked() string {
	if id, ok := s.kv.GetString(keyClientID); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	s.kv.SetString(keyClientID, id)
	return id
}

// Token yields the current bearer token. An expired token reads as absent
// and is purged from storage on the way.
func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenLocked()
}

func (s *Store) tokenLocked() (string, bool) {
	tok, ok := s.kv.GetString(keyToken)
	if !ok || tok == "" {
		return "", false
	}
	if exp, ok := s.kv.GetString(keyExpiration); ok && exp != "" {
		// an expiration that does not parse means the token never expires
		if t, err := time.Parse(time.RFC3339, exp); err == nil && !t.After(time.Now()) {
			s.kv.Remove(keyToken)
			s.kv.Remove(keyExpiration)
			return "", false
		}
	}
	return tok, true
}

// Denied reports whether the server rejected this client's last request.
func (s *Store) Denied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.GetBool(keyDenied)
}

// Pending reports the href of a request still awaiting operator approval.
func (s *Store) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	href, ok := s.kv.GetString(keyPendingHref)
	return href, ok && href != ""
}

// ClearToken drops the stored token, its expiration and a recorded denial.
// The REST layer calls it when the server rejects the credentials.
func (s *Store) ClearToken() {
	s.mu.Lock()
	s.kv.Remove(keyToken)
	s.kv.Remove(keyExpiration)
	s.kv.Remove(keyDenied)
	s.mu.Unlock()
}

// EnsureTokenAvailable drives the acquisition state machine as far as it
// can right now: done when a valid token is held, a denial is on record or
// a request is still pending on the server; otherwise a new request goes
// out. Failures stay internal; callers observe only whether a token is
// present afterwards.
func (s *Store) EnsureTokenAvailable(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == "" {
		return
	}
	if _, ok := s.tokenLocked(); ok {
		return
	}
	if s.kv.GetBool(keyDenied) {
		return
	}
	if href, ok := s.kv.GetString(keyPendingHref); ok && href != "" {
		s.pollLocked(ctx, href)
		// a new request starts only once the old one resolved away with
		// nothing to show: no token granted, no denial, href gone
		if _, ok := s.kv.GetString(keyPendingHref); ok {
			return
		}
		if _, ok := s.tokenLocked(); ok {
			return
		}
		if s.kv.GetBool(keyDenied) {
			return
		}
	}
	if err := s.requestLocked(ctx, s.desc); err != nil {
		glog.V(2).Infof("token: access request: %v", err)
	}
}

// Request submits an access request under the given description (empty uses
// the configured default). It fails fast when a denial is on record.
func (s *Store) Request(ctx context.Context, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv.GetBool(keyDenied) {
		return sk.ErrAccessDenied
	}
	if s.base == "" {
		return sk.ErrNoServerConfigured
	}
	if description == "" {
		description = s.desc
	}
	return s.requestLocked(ctx, description)
}

func (s *Store) requestLocked(ctx context.Context, description string) error {
	body, err := json.Marshal(map[string]string{
		"clientId":    s.clientIDLocked(),
		"description": description,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+s.path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return sk.ErrInvalidResponse
	}

	if resp.StatusCode == http.StatusNotImplemented {
		// server does not offer the approval flow; nothing to pursue
		glog.V(2).Infof("token: server does not implement access requests")
		return nil
	}

	var rr requestResponse
	if err := json.Unmarshal(rb, &rr); err != nil {
		return sk.ErrInvalidResponse
	}
	switch resp.StatusCode {
	case http.StatusAccepted:
		if rr.Href == "" {
			return sk.ErrInvalidResponse
		}
		s.kv.SetString(keyPendingHref, rr.Href)
		return nil
	case http.StatusBadRequest:
		// servers answer 400 with the href of the request already on file
		// for this clientId; adopt it and check its status right away
		if rr.Href == "" {
			return &sk.HTTPError{StatusCode: resp.StatusCode}
		}
		s.kv.SetString(keyPendingHref, rr.Href)
		s.pollLocked(ctx, rr.Href)
		return nil
	default:
		return &sk.HTTPError{StatusCode: resp.StatusCode}
	}
}

// pollLocked checks an outstanding request. Any failure leaves the href in
// place for a later attempt.
func (s *Store) pollLocked(ctx context.Context, href string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(href), nil)
	if err != nil {
		return
	}
	resp, err := s.http.Do(req)
	if err != nil {
		glog.V(2).Infof("token: poll %s: %v", href, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		glog.V(2).Infof("token: poll %s: status %d", href, resp.StatusCode)
		return
	}
	var status requestStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		glog.V(2).Infof("token: poll %s: %v", href, err)
		return
	}
	if status.State != stateCompleted {
		// still pending on the server; keep the href for the next poll
		return
	}
	s.kv.Remove(keyPendingHref)
	if status.AccessRequest == nil {
		return
	}
	switch status.AccessRequest.Permission {
	case permissionApproved:
		if status.AccessRequest.Token == "" {
			return
		}
		s.kv.SetString(keyToken, status.AccessRequest.Token)
		if status.AccessRequest.ExpirationTime != "" {
			s.kv.SetString(keyExpiration, status.AccessRequest.ExpirationTime)
		} else {
			s.kv.Remove(keyExpiration)
		}
		s.kv.Remove(keyDenied)
	case permissionDenied:
		s.kv.SetBool(keyDenied, true)
	}
}

// requestURL resolves hrefs the server hands out, which may be absolute or
// server-relative.
func (s *Store) requestURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.base + href
}
