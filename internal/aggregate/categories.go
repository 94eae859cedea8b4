// Package aggregate maps channels to categories and reduces the
// finished master grid into directional tallies: per-row signed sums
// per category, and per-channel average in/out totals with a
// storage-turnaround ratio.
package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// UnknownCategory buckets channels that the mapping file does not
// know about. It is created lazily and reported at run end so the
// mapping file can be updated.
const UnknownCategory = "Unknown"

// ChannelCategory is one channel's mapping entry.
type ChannelCategory struct {
	// Index into CategoryMap.Categories.
	Index int
	// IsLoad marks channels that draw power but report positive
	// values; their sign is flipped before classification.
	IsLoad bool
}

// CategoryMap holds the channel-to-category table. Categories keep
// their first-seen file order.
type CategoryMap struct {
	Categories []string
	byChannel  map[string]ChannelCategory
}

// LoadCategories reads the category mapping CSV. The header row is
// skipped; only the first three fields (channel, category, load flag)
// are consumed, any further columns are passthrough annotations.
func LoadCategories(path string) (*CategoryMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories file: %w", err)
	}
	defer file.Close()

	return readCategories(file)
}

func readCategories(r io.Reader) (*CategoryMap, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	cm := &CategoryMap{byChannel: make(map[string]ChannelCategory)}
	index := make(map[string]int)

	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read categories record: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("categories record needs at least 3 fields, got %d", len(record))
		}

		channel, category, loadFlag := record[0], record[1], record[2]

		catIndex, ok := index[category]
		if !ok {
			catIndex = len(cm.Categories)
			cm.Categories = append(cm.Categories, category)
			index[category] = catIndex
		}
		cm.byChannel[channel] = ChannelCategory{
			Index:  catIndex,
			IsLoad: loadFlag == "y",
		}
	}

	if len(cm.Categories) == 0 {
		return nil, fmt.Errorf("categories file contains no entries")
	}
	return cm, nil
}

// Lookup returns a channel's mapping entry.
func (cm *CategoryMap) Lookup(channel string) (ChannelCategory, bool) {
	cc, ok := cm.byChannel[channel]
	return cc, ok
}

// Len returns the number of known categories.
func (cm *CategoryMap) Len() int {
	return len(cm.Categories)
}
