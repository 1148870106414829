package marketmath

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func TestBasisBps(t *testing.T) {
	cases := []struct {
		name    string
		spot    string
		perp    string
		want    string
		wantErr bool
	}{
		{"premium", "25", "25.0125", "5", false},
		{"discount", "20", "19.99", "-5", false},
		{"flat", "10", "10", "0", false},
		{"zero spot", "0", "10", "", true},
		{"negative perp", "10", "-1", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BasisBps(d(tc.spot), d(tc.perp))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !got.Equal(d(tc.want)) {
				t.Fatalf("got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestTopOfBook_Mid(t *testing.T) {
	mid, err := TopOfBook{Bid: nd("24.9"), Ask: nd("25.1")}.Mid()
	if err != nil || !mid.Equal(d("25")) {
		t.Fatalf("mid got=%s err=%v", mid, err)
	}
	if _, err := (TopOfBook{Ask: nd("1")}).Mid(); err == nil {
		t.Fatalf("单边缺失应报错")
	}
	if _, err := (TopOfBook{Bid: nd("2"), Ask: nd("1")}).Mid(); err == nil {
		t.Fatalf("交叉盘口应报错")
	}
	spread, err := TopOfBook{Bid: nd("99"), Ask: nd("101")}.SpreadBps()
	if err != nil || !spread.Equal(d("200")) {
		t.Fatalf("spread got=%s err=%v", spread, err)
	}
}

func TestExceedsThreshold(t *testing.T) {
	if !ExceedsThreshold(d("-6"), d("5")) {
		t.Fatalf("|-6| >= 5")
	}
	if ExceedsThreshold(d("4.99"), d("5")) {
		t.Fatalf("4.99 < 5")
	}
}
