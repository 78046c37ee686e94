package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"dropwatch/lib/htmlutil"
	"dropwatch/lib/restyutil"
	"dropwatch/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Client scrapes the public tracker site that lists active drop
// campaigns and streamer live status. The tracker renders static HTML,
// so a plain HTTP client is enough here; only the streaming platform
// itself needs the automation driver.
type Client struct {
	client    *resty.Client
	dropsPath string
}

func NewClient(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Second * 30)
	return &Client{client: client, dropsPath: "/drops"}
}

// SetInstrumentOutput enables HTTP exchange dumps for debugging failed
// scrapes.
func (c *Client) SetInstrumentOutput(out restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.client, tracer, out)
}

var hoursRegex = regexp.MustCompile(`(\d+)`)
var generalHeaderRegex = regexp.MustCompile(`(?i)\bgeneral\s+drop\b`)
var generalAliasRegex = regexp.MustCompile(`(?i)([A-Za-z0-9]+)\s+GENERAL\s+DROP`)

func (c *Client) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	res, err := c.client.R().
		SetContext(ctx).
		Get(c.dropsPath)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("tracker: %s", res.Status())
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}

// FetchCampaign scrapes the full campaign listing: per-streamer drops,
// general drops, and the campaign countdown when it has not started.
func (c *Client) FetchCampaign(ctx context.Context) (Campaign, error) {
	ctx, span := tracer.Start(ctx, "FetchCampaign")
	defer span.End()

	doc, err := c.fetchDocument(ctx)
	if err != nil {
		return Campaign{}, err
	}

	campaign := Campaign{
		Streamers: parseStreamerDrops(doc),
		General:   parseGeneralDrops(doc),
	}

	if len(campaign.Streamers) == 0 && len(campaign.General) == 0 {
		campaign.NotStarted, campaign.StartTime = parseCountdown(doc)
	}

	slog.DebugContext(
		ctx, "campaign parsed",
		"general", len(campaign.General),
		"streamer", len(campaign.Streamers),
		"not_started", campaign.NotStarted,
	)
	return campaign, nil
}

func parseStreamerDrops(doc *goquery.Document) []StreamerDrop {
	var drops []StreamerDrop
	doc.Find(".streamer-drops .drop-box").Each(func(_ int, box *goquery.Selection) {
		streamer := htmlutil.CleanText(box.Find(".streamer-name").First().Text())
		item := htmlutil.CleanText(box.Find(".drop-box-footer .drop-type").First().Text())
		if streamer == "" || item == "" {
			return
		}

		drop := StreamerDrop{
			Streamer: streamer,
			Item:     item,
			IsLive:   box.Find(".online-status").Length() > 0,
			URL:      box.Find(".drop-box-header a.streamer-info").First().AttrOr("href", ""),
		}
		hoursText := box.Find(".drop-box-footer .drop-time span").First().Text()
		if m := hoursRegex.FindStringSubmatch(hoursText); m != nil {
			drop.Hours, _ = strconv.Atoi(m[1])
		}
		drops = append(drops, drop)
	})
	return drops
}

func parseGeneralDrops(doc *goquery.Document) []GeneralDrop {
	boxes := doc.Find("#drops .drops-container .drop-box")
	if boxes.Length() == 0 {
		// older page layouts put general boxes at the top level,
		// streamer boxes are filtered out by their header text
		boxes = doc.Find(".drop-box").Not(".streamer-drops .drop-box")
	}

	var drops []GeneralDrop
	boxes.Each(func(_ int, box *goquery.Selection) {
		header := htmlutil.CleanText(box.Find(".drop-box-header").First().Text())
		if !generalHeaderRegex.MatchString(header) {
			return
		}
		item := htmlutil.CleanText(box.Find(".drop-box-footer .drop-type").First().Text())
		if item == "" {
			return
		}

		drop := GeneralDrop{Item: item, Header: header}
		if m := generalAliasRegex.FindStringSubmatch(header); m != nil {
			drop.Alias = m[1]
		}
		hoursText := box.Find(".drop-box-footer .drop-time span").First().Text()
		if m := hoursRegex.FindStringSubmatch(hoursText); m != nil {
			drop.Hours, _ = strconv.Atoi(m[1])
		}
		drops = append(drops, drop)
	})
	return drops
}

func parseCountdown(doc *goquery.Document) (bool, *time.Time) {
	countdown := doc.Find(".drops-countdown").First()
	if countdown.Length() == 0 {
		return false, nil
	}
	unix, err := strconv.ParseInt(countdown.AttrOr("data-start-time", ""), 10, 64)
	if err != nil {
		return true, nil
	}
	start := time.Unix(unix, 0)
	return true, &start
}

// IsStreamerLive re-checks a single streamer's live flag against the
// tracker. Returns nil when the streamer does not appear on the page at
// all (unknown), so callers can distinguish "offline" from "gone".
func (c *Client) IsStreamerLive(ctx context.Context, name string) (*bool, error) {
	ctx, span := tracer.Start(ctx, "IsStreamerLive")
	defer span.End()

	doc, err := c.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	want := textutil.NormalizeName(name)
	var live *bool
	doc.Find(".streamer-drops .drop-box").EachWithBreak(func(_ int, box *goquery.Selection) bool {
		streamer := textutil.NormalizeName(box.Find(".streamer-name").First().Text())
		if streamer != want {
			return true
		}
		online := box.Find(".online-status").Length() > 0
		live = &online
		return false
	})
	return live, nil
}
