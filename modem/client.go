package modem

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// the only username the modem knows
	defaultUsername = "admin"

	loginSOAPAction  = `"http://purenetworks.com/HNAP1/Login"`
	scrapeSOAPAction = `"http://purenetworks.com/HNAP1/GetMultipleHNAPs"`

	// key used for HNAP_AUTH before any login has happened
	fallbackAuthKey = "withoutloginkey"

	// re-logins per GetChannelInfo call before the error surfaces
	maxLoginAttempts = 2
)

// ErrNotAuthenticated means an operation needed session credentials before
// any login has happened. It is recovered internally by logging in; it is
// distinct from network and scrape errors.
var ErrNotAuthenticated = errors.New("modem session not authenticated")

// ScrapeError reports an HNAP request the modem rejected.
type ScrapeError struct {
	StatusCode int
	Reason     string
}

func (e *ScrapeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("modem scrape failed: %s (status %d)", e.Reason, e.StatusCode)
	}
	return "modem scrape failed: " + e.Reason
}

// session holds the credentials issued by a successful login challenge.
// They share a lifetime: either both are set or the session is nil.
type session struct {
	uid        string
	privateKey string
}

// Client is a stateful HNAP client for one modem. It logs in lazily and
// re-authenticates when the modem expires the session server-side. Not
// safe for concurrent use; each scrape job owns exactly one Client.
type Client struct {
	Host string

	password string
	username string
	session  *session

	http    *http.Client
	baseURL string // overridable for tests
}

// NewClient returns a client for the modem at host. TLS verification is
// off because the device serves a self-signed certificate, and the timeout
// is generous because its status reads are awfully slow sometimes.
func NewClient(host, password string) *Client {
	return &Client{
		Host:     host,
		password: password,
		username: defaultUsername,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (c *Client) hnapURL() string {
	if c.baseURL != "" {
		return c.baseURL + "/HNAP1/"
	}
	return "https://" + c.Host + "/HNAP1/"
}

// hnapHMAC signs msg with key the way the modem's login.js does: HMAC-MD5,
// hex, uppercase.
func hnapHMAC(key, msg string) string {
	mac := hmac.New(md5.New, []byte(key))
	mac.Write([]byte(msg))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// authHeaderValue builds the HNAP_AUTH header for soapAction. It works
// before login too, falling back to a fixed placeholder key.
func (c *Client) authHeaderValue(soapAction string) string {
	key := fallbackAuthKey
	if c.session != nil {
		key = c.session.privateKey
	}

	// the modulus matches the modem's own javascript, shrug
	millis := strconv.FormatInt(time.Now().UnixMilli()%2_000_000_000_000, 10)

	return hnapHMAC(key, millis+soapAction) + " " + millis
}

// buildHeaders assembles the per-request headers. These are time-sensitive
// and must be rebuilt for every request. Asking for the auth cookie before
// a login has happened fails with ErrNotAuthenticated.
func (c *Client) buildHeaders(soapAction string, withAuthCookie bool) (http.Header, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("SOAPACTION", soapAction)
	headers.Set("HNAP_AUTH", c.authHeaderValue(soapAction))

	if withAuthCookie {
		if c.session == nil {
			return nil, ErrNotAuthenticated
		}
		// double Secure is strange, but it is what the modem sends
		headers.Set("Cookie", fmt.Sprintf("Secure; Secure; uid=%s; PrivateKey=%s",
			c.session.uid, c.session.privateKey))
	}

	return headers, nil
}

func (c *Client) post(ctx context.Context, headers http.Header, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal HNAP payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hnapURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = headers
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

type loginFields struct {
	Action        string `json:"Action"`
	Username      string `json:"Username"`
	LoginPassword string `json:"LoginPassword"`
	Captcha       string `json:"Captcha"`
	PrivateLogin  string `json:"PrivateLogin"`
}

type loginPayload struct {
	Login loginFields `json:"Login"`
}

type loginResponseEnvelope struct {
	LoginResponse struct {
		PublicKey   string `json:"PublicKey"`
		Cookie      string `json:"Cookie"`
		Challenge   string `json:"Challenge"`
		LoginResult string `json:"LoginResult"`
	} `json:"LoginResponse"`
}

type loginChallenge struct {
	publicKey string
	uid       string
	challenge string
}

// requestLoginChallenge does the first half of the login flow: a "request"
// action that hands back a public key, a uid, and a challenge message.
func (c *Client) requestLoginChallenge(ctx context.Context) (loginChallenge, error) {
	headers, err := c.buildHeaders(loginSOAPAction, false)
	if err != nil {
		return loginChallenge{}, err
	}

	payload := loginPayload{Login: loginFields{
		Action:       "request",
		Username:     c.username,
		PrivateLogin: "LoginPassword",
	}}

	resp, err := c.post(ctx, headers, payload)
	if err != nil {
		return loginChallenge{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return loginChallenge{}, &ScrapeError{
			StatusCode: resp.StatusCode,
			Reason:     "login challenge request rejected",
		}
	}

	var envelope loginResponseEnvelope
	if err := decodeJSON(resp.Body, &envelope); err != nil {
		return loginChallenge{}, err
	}

	return loginChallenge{
		publicKey: envelope.LoginResponse.PublicKey,
		uid:       envelope.LoginResponse.Cookie,
		challenge: envelope.LoginResponse.Challenge,
	}, nil
}

// login runs the two-part challenge-response flow. The plaintext password
// never goes over the wire: the private key is derived locally and the
// server only sees HMACs.
//
// Known limitation: if the server rejects the second step, the freshly
// derived credentials stay cached anyway and the next request will fail
// with a scrape error rather than triggering a new login.
func (c *Client) login(ctx context.Context) error {
	challenge, err := c.requestLoginChallenge(ctx)
	if err != nil {
		return err
	}

	privateKey := hnapHMAC(challenge.publicKey+c.password, challenge.challenge)
	c.session = &session{uid: challenge.uid, privateKey: privateKey}

	headers, err := c.buildHeaders(loginSOAPAction, true)
	if err != nil {
		return err
	}

	payload := loginPayload{Login: loginFields{
		Action:        "login",
		Username:      c.username,
		LoginPassword: hnapHMAC(privateKey, challenge.challenge),
		PrivateLogin:  "LoginPassword",
	}}

	resp, err := c.post(ctx, headers, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ScrapeError{StatusCode: resp.StatusCode, Reason: "login request rejected"}
	}

	var envelope loginResponseEnvelope
	if err := decodeJSON(resp.Body, &envelope); err != nil {
		return err
	}
	if result := envelope.LoginResponse.LoginResult; result != "OK" {
		return &ScrapeError{Reason: fmt.Sprintf("got login result %q (expecting OK)", result)}
	}

	return nil
}

type channelInfoPayload struct {
	GetMultipleHNAPs struct {
		Downstream string `json:"GetCustomerStatusDownstreamChannelInfo"`
		Upstream   string `json:"GetCustomerStatusUpstreamChannelInfo"`
	} `json:"GetMultipleHNAPs"`
}

type channelInfoEnvelope struct {
	GetMultipleHNAPsResponse struct {
		Downstream struct {
			CustomerConnDownstreamChannel string `json:"CustomerConnDownstreamChannel"`
		} `json:"GetCustomerStatusDownstreamChannelInfoResponse"`
		Upstream struct {
			CustomerConnUpstreamChannel string `json:"CustomerConnUpstreamChannel"`
		} `json:"GetCustomerStatusUpstreamChannelInfoResponse"`
	} `json:"GetMultipleHNAPsResponse"`
}

// GetChannelInfo scrapes the modem's downstream and upstream channel
// lists, logging in when there is no session yet or when the modem has
// expired it server-side (which shows up as a 404). Re-login is bounded:
// after maxLoginAttempts the scrape error surfaces to the caller.
func (c *Client) GetChannelInfo(ctx context.Context) ([]DownstreamChannel, []UpstreamChannel, error) {
	logins := 0

	for {
		headers, err := c.buildHeaders(scrapeSOAPAction, true)
		if errors.Is(err, ErrNotAuthenticated) {
			if logins >= maxLoginAttempts {
				return nil, nil, err
			}
			logins++
			if err := c.login(ctx); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		resp, err := c.post(ctx, headers, channelInfoPayload{})
		if err != nil {
			return nil, nil, err
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			if logins >= maxLoginAttempts {
				return nil, nil, &ScrapeError{
					StatusCode: resp.StatusCode,
					Reason:     "session rejected after re-login",
				}
			}
			logins++
			if err := c.login(ctx); err != nil {
				return nil, nil, err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, nil, &ScrapeError{
				StatusCode: resp.StatusCode,
				Reason:     "channel info request rejected",
			}
		}

		var envelope channelInfoEnvelope
		err = decodeJSON(resp.Body, &envelope)
		resp.Body.Close()
		if err != nil {
			return nil, nil, err
		}

		downstream, err := ParseDownstream(envelope.GetMultipleHNAPsResponse.Downstream.CustomerConnDownstreamChannel)
		if err != nil {
			return nil, nil, err
		}
		upstream, err := ParseUpstream(envelope.GetMultipleHNAPsResponse.Upstream.CustomerConnUpstreamChannel)
		if err != nil {
			return nil, nil, err
		}
		return downstream, upstream, nil
	}
}

func decodeJSON(r io.Reader, v any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode HNAP response: %w", err)
	}
	return nil
}
