// hierarchy-export fetches the live hierarchy from several hosts and writes
// them into one JSON snapshot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"stellar-hierarchy/hierarchy"
)

// TreeNode mirrors the host's /api/hierarchy node
type TreeNode struct {
	ID         hierarchy.BodyID `json:"id"`
	Name       string           `json:"name"`
	Kind       hierarchy.Kind   `json:"kind"`
	IsMainStar bool             `json:"is_main_star,omitempty"`
	Children   []*TreeNode      `json:"children,omitempty"`
}

// SystemHierarchy is one host's answer
type SystemHierarchy struct {
	Host     string      `json:"host"`
	SystemID string      `json:"system_id"`
	Name     string      `json:"name"`
	Roots    []*TreeNode `json:"roots"`
}

// Snapshot is the exported file
type Snapshot struct {
	Systems   []SystemHierarchy `json:"systems"`
	Timestamp string            `json:"timestamp"`
	HostCount int               `json:"host_count"`
}

func main() {
	var (
		hosts   = flag.String("hosts", "", "Comma-separated list of host addresses (e.g., localhost:8080,localhost:8081)")
		output  = flag.String("output", "hierarchy.json", "Output file path")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-host request timeout")
	)
	flag.Parse()

	if *hosts == "" {
		fmt.Println("Usage: hierarchy-export -hosts <addr1,addr2,...> [-output hierarchy.json]")
		os.Exit(1)
	}

	var addrs []string
	for _, addr := range strings.Split(*hosts, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}

	fmt.Printf("Fetching hierarchies from %d hosts...\n", len(addrs))

	client := &http.Client{Timeout: *timeout}
	var wg sync.WaitGroup
	results := make(chan SystemHierarchy, len(addrs))

	for _, addr := range addrs {
		wg.Add(1)
		go func(address string) {
			defer wg.Done()

			sys, err := fetch(client, address)
			if err != nil {
				fmt.Printf("Failed to fetch from %s: %v\n", address, err)
				return
			}
			results <- sys
			fmt.Printf("✓ Fetched: %s (%s bodies)\n", sys.Name, humanize.Comma(int64(countBodies(sys.Roots))))
		}(addr)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var systems []SystemHierarchy
	for sys := range results {
		systems = append(systems, sys)
	}

	if len(systems) == 0 {
		fmt.Println("No hierarchies retrieved!")
		os.Exit(1)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i].Host < systems[j].Host })

	snapshot := Snapshot{
		Systems:   systems,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		HostCount: len(systems),
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		fmt.Printf("Failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Printf("Failed to write file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✓ Exported %d systems to %s (%s)\n", len(systems), *output, humanize.Bytes(uint64(len(data))))

	fmt.Println("\nHierarchy Statistics:")
	fmt.Println("=====================")
	kinds := make(map[hierarchy.Kind]int)
	drifting := 0
	for _, sys := range systems {
		for _, root := range sys.Roots {
			countKinds(root, kinds)
			if root.Kind != hierarchy.KindStar {
				drifting++
			}
		}
	}
	for _, kind := range []hierarchy.Kind{hierarchy.KindStar, hierarchy.KindPlanet, hierarchy.KindGasGiant,
		hierarchy.KindMoon, hierarchy.KindAsteroidField, hierarchy.KindOortCloud, hierarchy.KindOther} {
		if count := kinds[kind]; count > 0 {
			fmt.Printf("%-15s %s\n", kind, humanize.Comma(int64(count)))
		}
	}
	if drifting > 0 {
		fmt.Printf("\n%d drifting bodies without a parent\n", drifting)
	}
}

func fetch(client *http.Client, address string) (SystemHierarchy, error) {
	sys := SystemHierarchy{Host: address}

	resp, err := client.Get("http://" + address + "/api/hierarchy")
	if err != nil {
		return sys, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sys, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sys, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, &sys); err != nil {
		return sys, fmt.Errorf("parse response: %w", err)
	}
	sys.Host = address
	return sys, nil
}

func countBodies(nodes []*TreeNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + countBodies(node.Children)
	}
	return n
}

func countKinds(node *TreeNode, kinds map[hierarchy.Kind]int) {
	kinds[node.Kind]++
	for _, child := range node.Children {
		countKinds(child, kinds)
	}
}
