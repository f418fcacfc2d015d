package engine

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

const (
	// DefaultBaseURL is the public 나라장터 host. Overridable for tests and
	// for the mirror hosts the site occasionally moves search to.
	DefaultBaseURL = "https://www.g2b.go.kr"

	listPath       = "/ep/tbid/tbidList.do"
	requestTimeout = 20 * time.Second
	defaultUA      = "Mozilla/5.0 (compatible; cradcrawl/1.0)"
)

// Layouts the list page uses for posted/deadline timestamps.
var siteTimeLayouts = []string{
	"2006/01/02 15:04",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006-01-02",
}

// G2B scrapes the server-rendered bid list and detail pages over plain
// HTTP. It never runs a browser, so SearchOptions.Headless is ignored.
type G2B struct {
	base string
	ua   string
	c    *colly.Collector
}

func NewG2B(baseURL string) *G2B {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &G2B{base: strings.TrimRight(baseURL, "/"), ua: defaultUA}
}

// Init probes the base URL once so an unreachable site fails the run up
// front instead of per keyword.
func (g *G2B) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := colly.NewCollector(
		colly.UserAgent(g.ua),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(requestTimeout)
	g.c = c

	if err := c.Clone().Visit(g.base + "/"); err != nil {
		return fmt.Errorf("reach %s: %w", g.base, err)
	}
	return nil
}

// Search fetches one keyword's list page. Column order follows the public
// list table: 번호, 업무, 공고번호-차수, 분류, 공고명, 공고기관, 수요기관,
// 게시일시(입찰마감일시).
func (g *G2B) Search(ctx context.Context, keyword string, opts SearchOptions) ([]bid.Notice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.c == nil {
		return nil, fmt.Errorf("engine not initialized")
	}

	var notices []bid.Notice
	c := g.c.Clone()
	c.OnHTML("table tr", func(e *colly.HTMLElement) {
		if opts.MaxItems > 0 && len(notices) >= opts.MaxItems {
			return
		}
		cells := e.ChildTexts("td")
		if len(cells) < 8 {
			return
		}
		posted, deadline := splitPostedDeadline(cells[7])
		n := bid.Notice{
			Number:    clean(cells[2]),
			Title:     clean(cells[4]),
			Agency:    clean(cells[6]),
			Date:      posted,
			EndDate:   deadline,
			Status:    statusForDeadline(deadline, time.Now()),
			DetailURL: e.Request.AbsoluteURL(e.ChildAttr("td:nth-of-type(5) a", "href")),
		}
		if n.Agency == "" {
			n.Agency = clean(cells[5])
		}
		if n.Title == "" {
			return
		}
		notices = append(notices, n)
	})

	if err := c.Visit(g.searchURL(keyword, opts)); err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	return notices, nil
}

// Details visits the notice's detail page and fills the th/td field table
// plus attachment links.
func (g *G2B) Details(ctx context.Context, n *bid.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.c == nil {
		return fmt.Errorf("engine not initialized")
	}
	if n.DetailURL == "" {
		return fmt.Errorf("notice %q has no detail url", n.Title)
	}

	det := bid.Details{}
	var attachments []string

	c := g.c.Clone()
	c.OnHTML("tr", func(e *colly.HTMLElement) {
		th := clean(e.ChildText("th"))
		td := clean(e.ChildText("td"))
		if th == "" || td == "" {
			return
		}
		switch {
		case strings.Contains(th, "계약방법"):
			det.ContractMethod = td
		case strings.Contains(th, "추정가격"):
			det.EstimatedPrice = td
		case strings.Contains(th, "입찰방식"):
			det.BidType = td
		case strings.Contains(th, "참가자격"):
			det.Qualification = td
		case strings.Contains(th, "계약기간"), strings.Contains(th, "납품기한"):
			det.ContractPeriod = td
		case strings.Contains(th, "납품장소"):
			det.DeliveryLocation = td
		case strings.Contains(th, "유의사항"), strings.Contains(th, "공고내용"):
			det.Notice = td
		}
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if !strings.Contains(href, "Down") && !strings.Contains(href, "download") {
			return
		}
		if name := clean(e.Text); name != "" {
			attachments = append(attachments, name)
		} else {
			attachments = append(attachments, e.Request.AbsoluteURL(href))
		}
	})

	if err := c.Visit(n.DetailURL); err != nil {
		return fmt.Errorf("detail %q: %w", n.Title, err)
	}

	if det != (bid.Details{}) {
		n.Details = &det
	}
	if len(attachments) > 0 {
		n.Attachments = attachments
	}
	return nil
}

func (g *G2B) Close() error {
	g.c = nil
	return nil
}

func (g *G2B) searchURL(keyword string, opts SearchOptions) string {
	q := url.Values{}
	q.Set("category", "TGONG")
	q.Set("bidNm", keyword)
	q.Set("searchType", "1")
	if opts.StartDate != "" {
		q.Set("searchDtType", "1")
		q.Set("fromBidDt", siteDate(opts.StartDate))
	}
	if opts.EndDate != "" {
		q.Set("toBidDt", siteDate(opts.EndDate))
	}
	per := opts.MaxItems
	if per <= 0 || per > 100 {
		per = 100
	}
	q.Set("recordCountPerPage", strconv.Itoa(per))
	return g.base + listPath + "?" + q.Encode()
}

// splitPostedDeadline takes "2025/01/02 10:00(2025/01/12 18:00)" apart.
func splitPostedDeadline(s string) (posted, deadline string) {
	s = clean(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, ""
	}
	posted = clean(s[:open])
	deadline = clean(strings.TrimSuffix(s[open+1:], ")"))
	return posted, deadline
}

func statusForDeadline(deadline string, now time.Time) bid.Status {
	if deadline == "" {
		return bid.StatusUnknown
	}
	for _, layout := range siteTimeLayouts {
		t, err := time.ParseInLocation(layout, deadline, now.Location())
		if err != nil {
			continue
		}
		if now.Before(t) {
			return bid.StatusBidding
		}
		return bid.StatusClosed
	}
	return bid.StatusUnknown
}

func siteDate(s string) string {
	return strings.ReplaceAll(s, "-", "/")
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
