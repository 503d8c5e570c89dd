package lcu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"focuswatch/internal/build"
)

// RunePage is a page as the perks endpoint reads and writes it
type RunePage struct {
	ID              int64  `json:"id,omitempty"`
	Name            string `json:"name"`
	PrimaryStyleID  int    `json:"primaryStyleId"`
	SubStyleID      int    `json:"subStyleId"`
	SelectedPerkIDs []int  `json:"selectedPerkIds"`
	Current         bool   `json:"current"`
	IsDeletable     bool   `json:"isDeletable,omitempty"`
	IsEditable      bool   `json:"isEditable,omitempty"`
	IsActive        bool   `json:"isActive,omitempty"`
}

type ItemSetItem struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type ItemSetBlock struct {
	Type  string        `json:"type"`
	Items []ItemSetItem `json:"items"`
}

type ItemSet struct {
	UID                 string         `json:"uid"`
	Title               string         `json:"title"`
	AssociatedChampions []int          `json:"associatedChampions"`
	AssociatedMaps      []int          `json:"associatedMaps"`
	Blocks              []ItemSetBlock `json:"blocks"`
	Map                 string         `json:"map"`
	Mode                string         `json:"mode"`
	Type                string         `json:"type"`
	SortRank            int            `json:"sortrank"`
	PreferredItemSlots  []any          `json:"preferredItemSlots"`
}

// itemSetsDocument keeps existing sets raw so fields this package does not
// model survive the round trip
type itemSetsDocument struct {
	AccountID int64             `json:"accountId"`
	ItemSets  []json.RawMessage `json:"itemSets"`
	Timestamp int64             `json:"timestamp"`
}

// RunePages lists the player's rune pages
func (c *Client) RunePages(ctx context.Context) ([]RunePage, error) {
	var pages []RunePage
	if err := c.getJSON(ctx, "/lol-perks/v1/pages", &pages); err != nil {
		return nil, fmt.Errorf("failed to get rune pages: %w", err)
	}
	return pages, nil
}

// DeleteRunePage removes a page by id
func (c *Client) DeleteRunePage(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, http.MethodDelete, "/lol-perks/v1/pages/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("failed to delete rune page %d: status %d", id, resp.StatusCode)
	}
	return nil
}

func (c *Client) postRunePage(ctx context.Context, page RunePage) (int, string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/lol-perks/v1/pages", page)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}

// CreateRunePage creates page. When the page limit is hit, the first
// deletable and editable page is removed and the create is retried once.
func (c *Client) CreateRunePage(ctx context.Context, page RunePage) error {
	status, body, err := c.postRunePage(ctx, page)
	if err != nil {
		return err
	}
	if status/100 == 2 {
		return nil
	}
	if status != http.StatusBadRequest && !strings.Contains(body, "Max pages reached") {
		return fmt.Errorf("failed to create rune page: %d - %s", status, body)
	}

	pages, err := c.RunePages(ctx)
	if err != nil {
		return err
	}

	var victim *RunePage
	for i := range pages {
		if pages[i].IsDeletable && pages[i].IsEditable {
			victim = &pages[i]
			break
		}
	}
	if victim == nil {
		return errors.New("max rune pages reached and no deletable pages found")
	}

	c.log.Infof("[Import] Replacing rune page %q to make room", victim.Name)
	if err := c.DeleteRunePage(ctx, victim.ID); err != nil {
		return err
	}

	status, body, err = c.postRunePage(ctx, page)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("failed to create rune page after deleting old one: %d - %s", status, body)
	}
	return nil
}

// ReplaceItemSet stores set for the current summoner, replacing any set
// with the same title
func (c *Client) ReplaceItemSet(ctx context.Context, set ItemSet, now time.Time) error {
	summoner, err := c.CurrentSummoner(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/lol-item-sets/v1/item-sets/%d/sets", summoner.SummonerID)

	var doc itemSetsDocument
	if err := c.getJSON(ctx, endpoint, &doc); err != nil {
		return fmt.Errorf("failed to get item sets: %w", err)
	}

	kept := make([]json.RawMessage, 0, len(doc.ItemSets)+1)
	for _, raw := range doc.ItemSets {
		var existing struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(raw, &existing); err == nil && existing.Title == set.Title {
			continue
		}
		kept = append(kept, raw)
	}

	encoded, err := json.Marshal(set)
	if err != nil {
		return err
	}
	doc.ItemSets = append(kept, json.RawMessage(encoded))
	doc.Timestamp = now.UnixMilli()
	if doc.AccountID == 0 {
		doc.AccountID = summoner.AccountID
	}

	resp, err := c.do(ctx, http.MethodPut, endpoint, doc)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("failed to update item sets: %d - %s", resp.StatusCode, body)
	}
	return nil
}

// ImportResult reports which parts of a build reached the client
type ImportResult struct {
	RunesImported bool   `json:"runesImported"`
	ItemsImported bool   `json:"itemsImported"`
	Message       string `json:"message"`
}

// RuneNamer resolves rune ids for import messages
type RuneNamer interface {
	RuneName(id int) string
}

// Importer writes builds into the client as a rune page and an item set
type Importer struct {
	client *Client
	runes  RuneNamer
	prefix string
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewImporter creates an importer. runes may be nil.
func NewImporter(client *Client, runes RuneNamer, prefix string, log *zap.Logger) *Importer {
	return &Importer{client: client, runes: runes, prefix: prefix, log: log.Named("import").Sugar(), now: time.Now}
}

// Import writes b. It fails only when nothing could be written.
func (im *Importer) Import(ctx context.Context, b *build.Build) (ImportResult, error) {
	var res ImportResult
	var errs []error

	title := fmt.Sprintf("%s %s %s", im.prefix, displayName(b), b.Role)

	if b.Runes != nil && b.Runes.Complete() {
		page := RunePage{
			Name:            title,
			PrimaryStyleID:  b.Runes.PrimaryStyleID,
			SubStyleID:      b.Runes.SubStyleID,
			SelectedPerkIDs: b.Runes.PerkIDs(),
			Current:         true,
		}
		if err := im.client.CreateRunePage(ctx, page); err != nil {
			errs = append(errs, fmt.Errorf("runes: %w", err))
		} else {
			res.RunesImported = true
		}
	}

	if !b.Items.Empty() {
		if err := im.client.ReplaceItemSet(ctx, itemSetFor(b, title), im.now()); err != nil {
			errs = append(errs, fmt.Errorf("items: %w", err))
		} else {
			res.ItemsImported = true
		}
	}

	keystone := ""
	if res.RunesImported && im.runes != nil {
		keystone = " (" + im.runes.RuneName(b.Runes.Keystone) + ")"
	}
	switch {
	case res.RunesImported && res.ItemsImported:
		res.Message = "Runes" + keystone + " and items imported"
	case res.RunesImported:
		res.Message = "Runes" + keystone + " imported"
	case res.ItemsImported:
		res.Message = "Items imported"
	}

	if !res.RunesImported && !res.ItemsImported {
		if len(errs) == 0 {
			errs = append(errs, errors.New("build has nothing to import"))
		}
		return res, errors.Join(errs...)
	}
	for _, err := range errs {
		im.log.Warnf("[Import] partial import for %s: %v", displayName(b), err)
	}
	return res, nil
}

func displayName(b *build.Build) string {
	if b.Champion != "" {
		return b.Champion
	}
	return "Champion " + strconv.Itoa(b.ChampionID)
}

func itemSetFor(b *build.Build, title string) ItemSet {
	block := func(name string, ids []int) ItemSetBlock {
		items := make([]ItemSetItem, 0, len(ids))
		for _, id := range ids {
			items = append(items, ItemSetItem{ID: strconv.Itoa(id), Count: 1})
		}
		return ItemSetBlock{Type: name, Items: items}
	}

	var blocks []ItemSetBlock
	add := func(name string, ids []int) {
		if len(ids) > 0 {
			blocks = append(blocks, block(name, ids))
		}
	}
	add("Starting Items", b.Items.Starting)
	add("Core Build", b.Items.Core)
	if b.Items.Boots > 0 {
		add("Boots", []int{b.Items.Boots})
	}
	add("Full Build", b.Items.FullBuild)
	add("Situational", b.Items.Situational)

	return ItemSet{
		UID:                 uuid.NewString(),
		Title:               title,
		AssociatedChampions: []int{b.ChampionID},
		AssociatedMaps:      []int{11},
		Blocks:              blocks,
		Map:                 "any",
		Mode:                "any",
		Type:                "custom",
		PreferredItemSlots:  []any{},
	}
}
