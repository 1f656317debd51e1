package gedu

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"gedusentinel/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("scrapers/gedu")

var (
	ErrLoginFailed    = fmt.Errorf("the portal rejected the login")
	ErrSessionExpired = fmt.Errorf("the login session has expired")
	ErrDecode         = fmt.Errorf("malformed event data")
)

// Event is one scheduled class as the portal reports it. Equality is
// structural, there is no identity beyond the field values.
type Event struct {
	Title     string
	Location  string
	TimeLabel string
	Start     time.Time
	End       time.Time
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

type ClientOptions struct {
	BaseUrl string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	client.SetHeaders(map[string]string{
		"User-Agent":       "THaGKi9/1.0.0",
		"X-Requested-With": "XMLHttpRequest",
		"Accept-Language":  "en-US,en;q=0.8",
	})
	// the portal serves an incomplete certificate chain
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/gedu/http")

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

var loginMarkerRegex = regexp.MustCompile(`<data>([^<]*)</data>`)

// Login authenticates against the portal. On success the client's
// cookie jar is replaced with a clean one holding exactly the session
// cookies of this response, so cookies from earlier attempts never
// leak into the new session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		Post("/ajax/TeacherLogin.ashx")
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected login status code")
		return fmt.Errorf("%w: status code %d", ErrLoginFailed, res.StatusCode())
	}

	groups := loginMarkerRegex.FindStringSubmatch(res.String())
	if groups == nil {
		span.SetStatus(codes.Error, "no status marker in login response")
		return fmt.Errorf("%w: no status marker in response", ErrLoginFailed)
	}
	if groups[1] != "1" {
		span.SetStatus(codes.Error, "portal refused credentials")
		return fmt.Errorf("%w: %s", ErrLoginFailed, groups[1])
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	jar.SetCookies(c.BaseUrl, res.Cookies())
	c.Http.SetCookieJar(jar)

	slog.DebugContext(ctx, "login succeeded", "username", username)
	return nil
}

// the portal answers unauthenticated requests with a redirect to its
// landing page instead of a status code
func (c *Client) checkSession(res *resty.Response) error {
	if res.RawResponse == nil || res.RawResponse.Request == nil {
		return nil
	}
	final := res.RawResponse.Request.URL
	if final.Path == "/Default.aspx" && final.Query().Has("ReturnUrl") {
		return ErrSessionExpired
	}
	return nil
}

func (c *Client) fetchSchedulePage(ctx context.Context, date time.Time) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParam("time", date.Format("2006-01-02")).
		Get("/Teacher/TeacherClass.aspx")
	if err != nil {
		return nil, err
	}
	if err := c.checkSession(res); err != nil {
		return nil, err
	}
	return res, nil
}

const dataScriptPrefix = "/extnet/extnet-init-js/ext.axd?"

// dataScriptURL digs the generated Ext.NET script link out of the
// schedule page. A miss is soft: the caller treats an empty url as an
// empty schedule and the next poll retries anyway.
func dataScriptURL(ctx context.Context, page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		slog.WarnContext(ctx, "failed to parse schedule page", "err", err)
		return ""
	}

	var found string
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if strings.HasPrefix(src, dataScriptPrefix) {
			found = src
			return false
		}
		return true
	})
	if found == "" {
		slog.WarnContext(ctx, "no event data script on schedule page", "bytes", len(page))
	}
	return found
}

// FetchEvents loads the schedule page scoped to date's day, follows
// the embedded data script and decodes the event list from it, sorted
// ascending by start time.
func (c *Client) FetchEvents(ctx context.Context, date time.Time) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "client:FetchEvents")
	defer span.End()

	page, err := c.fetchSchedulePage(ctx, date)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch schedule page")
		return nil, err
	}

	scriptUrl := dataScriptURL(ctx, page.Body())
	if scriptUrl == "" {
		return nil, nil
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", page.Request.URL).
		Get(scriptUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch event data script")
		return nil, err
	}
	if err := c.checkSession(res); err != nil {
		return nil, err
	}

	events, err := extractEvents(ctx, res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to decode event data")
		return nil, err
	}

	slices.SortFunc(events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	return events, nil
}
