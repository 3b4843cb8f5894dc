package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// mockCompanies seeds the mock provider with a handful of real listed
// issuers so generated records look like genuine list-API output.
var mockCompanies = []struct {
	corpCode  string
	corpName  string
	stockCode string
	corpClass string
}{
	{"00126380", "삼성전자", "005930", "Y"},
	{"00164742", "SK하이닉스", "000660", "Y"},
	{"00356370", "네이버", "035420", "Y"},
	{"00401731", "카카오", "035720", "Y"},
	{"00155246", "현대자동차", "005380", "Y"},
	{"00164779", "셀트리온", "068270", "K"},
	{"00155319", "기아", "000270", "Y"},
	{"00547583", "삼성바이오로직스", "207940", "Y"},
}

var mockReportNames = []string{
	"사업보고서",
	"반기보고서",
	"분기보고서",
	"주요사항보고서",
	"공정공시",
	"자기주식취득결정",
	"유상증자결정",
	"전환사채권발행결정",
}

var mockRemarks = []string{"", "유", "코", "공", "연"}

// MockClient fabricates filings and documents so the full pipeline can run
// end to end without provider credentials. It serves the same surface the
// orchestrator consumes from Client.
type MockClient struct {
	logger *zap.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	issued map[string]struct{}
}

// NewMockClient builds a mock provider seeded from the clock.
func NewMockClient(logger *zap.Logger) *MockClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("mock provider active, serving generated disclosures")
	return &MockClient{
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		issued: make(map[string]struct{}),
	}
}

// FetchFilingsPage generates between 3 and 8 fresh filings for the date.
// Everything fits on page one; later pages come back empty.
func (m *MockClient) FetchFilingsPage(_ context.Context, date string, pageNo, _ int) (*ListResponse, error) {
	if pageNo > 1 {
		return &ListResponse{Status: StatusOK, TotalPage: 1}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 3 + m.rng.Intn(6)
	items := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		company := mockCompanies[m.rng.Intn(len(mockCompanies))]
		items = append(items, map[string]any{
			"corp_code":  company.corpCode,
			"corp_name":  company.corpName,
			"stock_code": company.stockCode,
			"corp_cls":   company.corpClass,
			"report_nm":  mockReportNames[m.rng.Intn(len(mockReportNames))],
			"rcept_no":   m.nextReceiptNo(date),
			"flr_nm":     company.corpName,
			"rcept_dt":   date,
			"rm":         mockRemarks[m.rng.Intn(len(mockRemarks))],
		})
	}

	m.logger.Info("generated mock disclosures",
		zap.String("date", date),
		zap.Int("count", count),
	)
	return &ListResponse{
		Status:     StatusOK,
		List:       items,
		TotalPage:  1,
		TotalCount: count,
	}, nil
}

// FetchDocument returns a ZIP holding one UTF-8 HTML member, shaped like a
// real viewer download.
func (m *MockClient) FetchDocument(_ context.Context, receiptNo string) ([]byte, error) {
	m.mu.Lock()
	body := fmt.Sprintf(mockDocumentHTML,
		receiptNo,
		receiptNo,
		m.rng.Intn(9000)+1000,
		m.rng.Intn(900)+100,
		m.rng.Intn(90)+10,
	)
	m.mu.Unlock()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(receiptNo + ".html")
	if err != nil {
		return nil, fmt.Errorf("mock document: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("mock document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("mock document: %w", err)
	}
	return buf.Bytes(), nil
}

// nextReceiptNo issues a unique 14-digit identifier: the target date plus a
// six-digit sequence. The caller holds m.mu.
func (m *MockClient) nextReceiptNo(date string) string {
	for {
		receiptNo := fmt.Sprintf("%s%06d", date, m.rng.Intn(900000)+100000)
		if _, ok := m.issued[receiptNo]; !ok {
			m.issued[receiptNo] = struct{}{}
			return receiptNo
		}
	}
}

var mockDocumentHTML = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="UTF-8">
<title>공시 문서 - %s</title>
</head>
<body>
<h1>공시 문서</h1>
<p>접수번호: %s</p>
<p>이 문서는 자격 증명 없이 파이프라인을 구동하기 위해 생성된 표본 데이터입니다.</p>
<h2>재무정보 (표본)</h2>
<table border="1">
<tr><th>항목</th><th>금액</th></tr>
<tr><td>자산총계</td><td>%d억원</td></tr>
<tr><td>매출액</td><td>%d억원</td></tr>
<tr><td>영업이익</td><td>%d억원</td></tr>
</table>
` + strings.Repeat("<p>첨부 내용 표본 단락입니다.</p>\n", 10) + `</body>
</html>
`
