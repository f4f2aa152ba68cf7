package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"speedtest-bot/internal/storage"
)

// LocationStats aggregates every measurement taken under one location tag.
type LocationStats struct {
	Location     string
	Count        int
	AvgDownload  float64
	AvgUpload    float64
	AvgLatency   float64
	BestDownload float64
	WorstLatency float64
	First        time.Time
	Last         time.Time
}

// Summary holds per-location statistics, sorted by location name.
type Summary struct {
	Total     int
	Locations []LocationStats
}

// Summarize groups records by location. Records are expected in append order.
func Summarize(recs []storage.Record) *Summary {
	byLoc := make(map[string]*LocationStats)
	for _, rec := range recs {
		st, ok := byLoc[rec.Location]
		if !ok {
			st = &LocationStats{Location: rec.Location, First: rec.Timestamp}
			byLoc[rec.Location] = st
		}
		st.Count++
		st.AvgDownload += rec.DownloadMbps
		st.AvgUpload += rec.UploadMbps
		st.AvgLatency += rec.LatencyMs
		if rec.DownloadMbps > st.BestDownload {
			st.BestDownload = rec.DownloadMbps
		}
		if rec.LatencyMs > st.WorstLatency {
			st.WorstLatency = rec.LatencyMs
		}
		st.Last = rec.Timestamp
	}

	sum := &Summary{Total: len(recs), Locations: make([]LocationStats, 0, len(byLoc))}
	for _, st := range byLoc {
		n := float64(st.Count)
		st.AvgDownload /= n
		st.AvgUpload /= n
		st.AvgLatency /= n
		sum.Locations = append(sum.Locations, *st)
	}
	sort.Slice(sum.Locations, func(i, j int) bool {
		return sum.Locations[i].Location < sum.Locations[j].Location
	})
	return sum
}

// Text renders the summary for a chat reply.
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Speed test statistics (%d measurements)\n", s.Total)
	for _, st := range s.Locations {
		fmt.Fprintf(&b, "\n📍 %s: %d tests, %s – %s\n", st.Location, st.Count,
			st.First.Format("2006-01-02"), st.Last.Format("2006-01-02"))
		fmt.Fprintf(&b, "- Avg download: %.2f Mbps (best %.2f)\n", st.AvgDownload, st.BestDownload)
		fmt.Fprintf(&b, "- Avg upload: %.2f Mbps\n", st.AvgUpload)
		fmt.Fprintf(&b, "- Avg ping: %.2f ms (worst %.2f)\n", st.AvgLatency, st.WorstLatency)
	}
	return b.String()
}
