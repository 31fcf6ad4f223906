package knmi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// feedColumns is the column order WriteFeed emits. It mixes retained and
// unused columns the way the real feed does.
var feedColumns = []string{"STN", "YYYYMMDD", "DDVEC", "FG", "TG", "TN", "TX", "Q", "DR", "RH", "PX", "PN", "UG"}

// FeedRow is one day of a generated feed. Nil values are written as blanks.
type FeedRow struct {
	Date                  string
	Humidity              *float64
	MaxPressure           *float64
	MinPressure           *float64
	Precipitation         *float64
	Radiation             *float64
	WindSpeed             *float64
	PrecipitationDuration *float64
	MeanTemperature       *float64
}

// WriteFeed writes rows in the KNMI daily feed layout: headerLines metadata
// lines, a "# "-prefixed column header, then space-padded CSV rows. It is the
// inverse of ParseFeed and feeds fixtures and offline checks.
func WriteFeed(w io.Writer, station string, rows []FeedRow, headerLines int) error {
	bw := bufio.NewWriter(w)

	if headerLines > 0 {
		fmt.Fprintln(bw, "# BRON: KONINKLIJK NEDERLANDS METEOROLOGISCH INSTITUUT (KNMI)")
	}
	for i := 1; i < headerLines; i++ {
		fmt.Fprintf(bw, "# %d\n", i)
	}

	fmt.Fprint(bw, "# ")
	for i, c := range feedColumns {
		if i > 0 {
			fmt.Fprint(bw, ",")
		}
		fmt.Fprintf(bw, "%5s", c)
	}
	fmt.Fprintln(bw)

	for _, r := range rows {
		cells := map[string]string{
			"STN":      station,
			"YYYYMMDD": r.Date,
			"DDVEC":    "225",
			"FG":       cell(r.WindSpeed),
			"TG":       cell(r.MeanTemperature),
			"TN":       "",
			"TX":       "",
			"Q":        cell(r.Radiation),
			"DR":       cell(r.PrecipitationDuration),
			"RH":       cell(r.Precipitation),
			"PX":       cell(r.MaxPressure),
			"PN":       cell(r.MinPressure),
			"UG":       cell(r.Humidity),
		}
		for i, c := range feedColumns {
			if i > 0 {
				fmt.Fprint(bw, ",")
			}
			fmt.Fprintf(bw, "%5s", cells[c])
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
