package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Amsmoox/tradebot/internal/model"
)

// FXLeadersExtractor parses the FX Leaders signal page. The page is an
// Angular app; the server-rendered markup keeps the ng-if attributes on the
// price spans, which is what we key on.
type FXLeadersExtractor struct{}

// NewFXLeaders returns an extractor for the FX Leaders signal page layout.
func NewFXLeaders() *FXLeadersExtractor {
	return &FXLeadersExtractor{}
}

// Extract parses signal containers out of the page. Signals missing an
// instrument are skipped; missing prices stay empty so the fingerprint
// treats two incomplete signals with the same known fields as identical.
func (e *FXLeadersExtractor) Extract(content []byte, sourceURL string) []model.Candidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		zap.L().Warn("extract: unparseable document",
			zap.String("source_url", sourceURL),
			zap.Error(err),
		)
		return nil
	}

	// Active signals container first, paid-signals container as fallback,
	// then the whole document if neither anchor is present.
	root := doc.Find("#fxl-sig-active-cntr").First()
	if root.Length() == 0 {
		root = doc.Find("#fxl-p-signals").First()
	}
	scope := root
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	containers := scope.Find("div.fxml-sig-cntr")
	if containers.Length() == 0 {
		containers = scope.Find("div[class*='sig-cntr']")
	}
	if containers.Length() == 0 {
		zap.L().Warn("extract: no signal containers in page",
			zap.String("source_url", sourceURL),
			zap.Int("content_bytes", len(content)),
		)
		return nil
	}

	var out []model.Candidate
	containers.Each(func(_ int, sel *goquery.Selection) {
		c, ok := parseContainer(sel)
		if !ok {
			return
		}
		out = append(out, c)
	})

	zap.L().Debug("extract: parsed signal page",
		zap.String("source_url", sourceURL),
		zap.Int("containers", containers.Length()),
		zap.Int("candidates", len(out)),
	)
	return out
}

func parseContainer(sel *goquery.Selection) (model.Candidate, bool) {
	instrument := text(sel.Find("a.hover").First())
	if instrument == "" {
		instrument = text(sel.Find("a[href*='/live-rates/']").First())
	}
	if instrument == "" {
		return model.Candidate{}, false
	}

	action := text(sel.Find("span[class*='text-uppercase']").First())
	if action == "" {
		sel.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := strings.ToUpper(text(s))
			if t == "BUY" || t == "SELL" {
				action = t
				return false
			}
			return true
		})
	}
	action = strings.ToUpper(action)

	status := text(sel.Find("span[class*='blink'], span[class*='ellipsis-animate']").First())
	if status == "" {
		sel.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			switch text(s) {
			case "Active", "Get Ready", "Closed":
				status = text(s)
				return false
			}
			return true
		})
	}

	return model.Candidate{
		Instrument: instrument,
		Action:     action,
		EntryPrice: text(sel.Find("span[ng-if*='entryPrice']").First()),
		StopLoss:   text(sel.Find("span[ng-if*='stopLoss']").First()),
		TakeProfit: text(sel.Find("span[ng-if*='takeProfit']").First()),
		Status:     status,
		RawText:    strings.Join(strings.Fields(sel.Text()), " "),
	}, true
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
