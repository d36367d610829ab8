package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"PBRSentinel/internal/model"
	"PBRSentinel/internal/notifier"
)

const (
	DefaultKRXBaseURL = "http://data.krx.co.kr"
	krxDataPath       = "/comm/bldAttendant/getJsonData.cmd"
	krxReferer        = "http://data.krx.co.kr/contents/MDC/MDI/mdiLoader"

	bldIndexFinder       = "dbms/comm/finder/finder_equidx"
	bldIndexFundamentals = "dbms/MDC/STAT/standard/MDCSTAT00702"

	krxDateLayout = "20060102"
)

// krxMarketSel maps market names to the finder's mktsel parameter.
var krxMarketSel = map[string]string{
	"KRX":    "1",
	"KOSPI":  "2",
	"KOSDAQ": "3",
	"THEME":  "4",
}

// KRXFetcher implements Fetcher against the KRX Market Data System.
type KRXFetcher struct {
	BaseURL   string
	ChunkDays int
	Client    *http.Client
	Limiter   *rate.Limiter
}

// NewKRXFetcher creates a fetcher with optional proxy support. Requests are
// throttled to rps and ranges longer than chunkDays are split.
func NewKRXFetcher(baseURL string, chunkDays int, rps float64, proxyURL string) *KRXFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = DefaultKRXBaseURL
	}
	if chunkDays <= 0 {
		chunkDays = 730
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &KRXFetcher{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ChunkDays: chunkDays,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Limiter: rate.NewLimiter(limit, 1),
	}
}

func (f *KRXFetcher) Name() string { return "krx" }

// krxIndexEntry is one row of the index finder response.
type krxIndexEntry struct {
	FullCode   string `json:"full_code"`
	ShortCode  string `json:"short_code"`
	CodeName   string `json:"codeNm"`
	MarketName string `json:"marketName"`
}

// krxFundamentalRow is one row of MDCSTAT00702. All values arrive as formatted strings.
type krxFundamentalRow struct {
	TradeDate string `json:"TRD_DD"`
	Close     string `json:"CLSPRC_IDX"`
	PER       string `json:"WT_PER"`
	PBR       string `json:"WT_STKPRC_NETASST_RTO"`
	DivYield  string `json:"DIV_YD"`
}

func (f *KRXFetcher) ListIndices(ctx context.Context, market string) ([]model.IndexRef, error) {
	sel, ok := krxMarketSel[strings.ToUpper(market)]
	if !ok {
		return nil, fmt.Errorf("krx: unsupported market %q", market)
	}
	form := url.Values{
		"bld":        {bldIndexFinder},
		"mktsel":     {sel},
		"searchText": {""},
	}
	var result struct {
		Block1 []krxIndexEntry `json:"block1"`
	}
	if err := f.post(ctx, form, &result); err != nil {
		return nil, fmt.Errorf("krx index finder: %w", err)
	}

	refs := make([]model.IndexRef, 0, len(result.Block1))
	for _, e := range result.Block1 {
		refs = append(refs, model.IndexRef{
			Market: strings.ToUpper(market),
			Name:   strings.TrimSpace(e.CodeName),
			ID:     e.FullCode + e.ShortCode,
			Group:  e.FullCode,
			Code:   e.ShortCode,
		})
	}
	return refs, nil
}

func (f *KRXFetcher) FetchFundamentals(ctx context.Context, ref model.IndexRef, from, to time.Time) ([]model.Observation, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("krx: empty range %s..%s", from.Format(krxDateLayout), to.Format(krxDateLayout))
	}
	byDate := make(map[string]model.Observation)
	for _, w := range splitRange(from, to, f.ChunkDays) {
		rows, err := f.fetchChunk(ctx, ref, w[0], w[1])
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			o, err := parseFundamentalRow(r)
			if err != nil {
				log.Warn().Err(err).Str("date", r.TradeDate).Msg("skip unparsable krx row")
				continue
			}
			byDate[o.Date.Format(krxDateLayout)] = o
		}
	}

	out := make([]model.Observation, 0, len(byDate))
	for _, o := range byDate {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *KRXFetcher) fetchChunk(ctx context.Context, ref model.IndexRef, from, to time.Time) ([]krxFundamentalRow, error) {
	form := url.Values{
		"bld":     {bldIndexFundamentals},
		"indIdx":  {ref.Group},
		"indIdx2": {ref.Code},
		"strtDd":  {from.Format(krxDateLayout)},
		"endDd":   {to.Format(krxDateLayout)},
	}
	var result struct {
		Output []krxFundamentalRow `json:"output"`
	}
	if err := f.post(ctx, form, &result); err != nil {
		return nil, fmt.Errorf("krx fundamentals %s..%s: %w", form.Get("strtDd"), form.Get("endDd"), err)
	}
	log.Debug().
		Str("index", ref.ID).
		Str("from", form.Get("strtDd")).
		Str("to", form.Get("endDd")).
		Int("rows", len(result.Output)).
		Msg("krx chunk fetched")
	return result.Output, nil
}

func (f *KRXFetcher) post(ctx context.Context, form url.Values, out any) error {
	if err := f.Limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+krxDataPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", krxReferer)

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// splitRange cuts [from, to] into consecutive inclusive windows of at most days days.
func splitRange(from, to time.Time, days int) [][2]time.Time {
	var out [][2]time.Time
	for start := from; !start.After(to); {
		end := start.AddDate(0, 0, days-1)
		if end.After(to) {
			end = to
		}
		out = append(out, [2]time.Time{start, end})
		start = end.AddDate(0, 0, 1)
	}
	return out
}

func parseFundamentalRow(r krxFundamentalRow) (model.Observation, error) {
	date, err := parseKRXDate(r.TradeDate)
	if err != nil {
		return model.Observation{}, err
	}
	return model.Observation{
		Date:  date,
		Close: parseKRXNumber(r.Close),
		PBR:   parseKRXNumber(r.PBR),
	}, nil
}

var krxDateSeparators = strings.NewReplacer("/", "", "-", "", ".", "")

// parseKRXDate accepts "2024/01/05", "2024-01-05" and "20240105".
func parseKRXDate(raw string) (time.Time, error) {
	s := notifier.FormatDateString(krxDateSeparators.Replace(strings.TrimSpace(raw)))
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
	}
	return t, nil
}

// parseKRXNumber parses "2,578.08"; "-" and blanks are missing. Zero stays zero.
func parseKRXNumber(s string) model.NullFloat {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return model.Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Missing()
	}
	return model.Float(v)
}
