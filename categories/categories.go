package categories

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Category is one entry of a translation table.
type Category struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Categories holds the translation tables of every primary ad server. Tables are keyed by ad
// server, then by table name: the ad server's own name for its default table, and
// "<adserver>_<publisher>" for publisher overrides.
type Categories struct {
	Categories map[string]map[string]map[string]string
}

// NewCategoriesFromDir _immediately_ loads every table under directory. Each ad server has its own
// subdirectory holding "<adserver>.json" and any number of "<adserver>_<publisher>.json" files.
func NewCategoriesFromDir(directory string) (*Categories, error) {
	adServers, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	c := &Categories{Categories: make(map[string]map[string]map[string]string, len(adServers))}
	for _, adServer := range adServers {
		if !adServer.IsDir() {
			continue
		}
		tables, err := loadTables(filepath.Join(directory, adServer.Name()))
		if err != nil {
			return nil, err
		}
		c.Categories[adServer.Name()] = tables
	}
	return c, nil
}

func loadTables(directory string) (map[string]map[string]string, error) {
	files, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	tables := make(map[string]map[string]string, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") { // Skip the .gitignore
			continue
		}
		data, err := os.ReadFile(filepath.Join(directory, file.Name()))
		if err != nil {
			return nil, err
		}
		table, err := parseTable(data)
		if err != nil {
			return nil, fmt.Errorf("category table %s/%s: %v", directory, file.Name(), err)
		}
		tables[strings.TrimSuffix(file.Name(), ".json")] = table
	}
	return tables, nil
}

// parseTable reads a table mapping IAB categories to ad server categories.
func parseTable(data []byte) (map[string]string, error) {
	entries := make(map[string]Category)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	table := make(map[string]string, len(entries))
	for iab, category := range entries {
		table[iab] = category.Id
	}
	return table, nil
}

func tableName(primaryAdServer, publisherId string) string {
	if publisherId == "" {
		return primaryAdServer
	}
	return primaryAdServer + "_" + publisherId
}

func (c *Categories) GetCategory(primaryAdServer, publisherId, iabCategory string) (string, error) {
	if primaryAdServerMapping, ok := c.Categories[primaryAdServer]; ok {
		if mapping, ok := primaryAdServerMapping[tableName(primaryAdServer, publisherId)]; ok {
			if category := mapping[iabCategory]; category != "" {
				return category, nil
			}
		}
	}
	return "", fmt.Errorf("Category '%s' not found for server: '%s', publisherId: '%s'",
		iabCategory, primaryAdServer, publisherId)
}

// FetchCategories lets a loaded set of tables serve auctions directly.
func (c *Categories) FetchCategories(ctx context.Context, primaryAdServer, publisherId, iabCategory string) (string, error) {
	return c.GetCategory(primaryAdServer, publisherId, iabCategory)
}
