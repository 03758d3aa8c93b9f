package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

type entry struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	State   string `json:"state"`
	Summary struct {
		Since               time.Time `json:"since"`
		ConsecutiveFailures int       `json:"consecutive_failures"`
		UptimePct           float64   `json:"uptime_pct"`
	} `json:"summary"`
	Outcome struct {
		Role     string        `json:"role"`
		Latency  time.Duration `json:"latency"`
		Category string        `json:"category"`
		Message  string        `json:"message"`
	} `json:"outcome"`
	Torrents []struct {
		Name     string  `json:"name"`
		Progress float64 `json:"progress"`
		Rate     int64   `json:"rate"`
	} `json:"torrents"`
	Host *struct {
		CPUPercent float64 `json:"cpu_pct"`
		MemPercent float64 `json:"mem_pct"`
		NetRxRate  float64 `json:"net_rx_rate"`
		NetTxRate  float64 `json:"net_tx_rate"`
	} `json:"host"`
}

func main() {
	refresh := flag.String("refresh", "", "force a poll of a target id, or \"all\"")
	flag.Parse()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://127.0.0.1:8090"
	}
	api = strings.TrimRight(api, "/")
	key := os.Getenv("API_KEY")
	client := &http.Client{Timeout: 10 * time.Second}

	if *refresh != "" {
		path := "/api/poll"
		if *refresh != "all" {
			path += "/" + *refresh
		}
		resp, err := call(client, http.MethodPost, api+path, key)
		if err != nil {
			fmt.Println("Error contacting API:", err)
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			fmt.Println("API returned status:", resp.Status)
			os.Exit(1)
		}
		fmt.Println("Poll scheduled.")
		return
	}

	resp, err := call(client, http.MethodGet, api+"/api/snapshot", key)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Println("API returned status:", resp.Status)
		os.Exit(1)
	}
	var snap struct {
		TakenAt time.Time `json:"taken_at"`
		Entries []entry   `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Println("Bad response:", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tKIND\tSTATE\tUPTIME\tLATENCY\tFAILS\tDETAIL")
	for _, e := range snap.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\t%s\t%d\t%s\n",
			e.ID, e.Kind, strings.ToUpper(e.State), e.Summary.UptimePct,
			e.Outcome.Latency.Round(time.Millisecond), e.Summary.ConsecutiveFailures, detail(e))
	}
	_ = tw.Flush()
	fmt.Println("as of", snap.TakenAt.Local().Format(time.TimeOnly))
}

func detail(e entry) string {
	switch {
	case e.Host != nil:
		return fmt.Sprintf("cpu %.0f%% mem %.0f%% rx %s tx %s",
			e.Host.CPUPercent, e.Host.MemPercent, humanRate(e.Host.NetRxRate), humanRate(e.Host.NetTxRate))
	case e.Kind == "torrent" && e.Outcome.Category == "":
		return fmt.Sprintf("%d active", len(e.Torrents))
	case e.State == "degraded":
		return "via remote"
	case e.Outcome.Category != "":
		return e.Outcome.Category + ": " + e.Outcome.Message
	}
	return ""
}

func humanRate(v float64) string {
	units := []string{"B/s", "KB/s", "MB/s", "GB/s"}
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}

func call(c *http.Client, method, url, key string) (*http.Response, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return c.Do(req)
}
