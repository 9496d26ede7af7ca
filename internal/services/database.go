package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/rocjay1/easytax/internal/config"
	"github.com/rocjay1/easytax/internal/models"
)

const (
	profilePartition = "PROFILE"
	summaryRowKey    = "SUMMARY"
	recordRowPrefix  = "REC_"
	batchSize        = 100
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// DatabaseService handles interactions with Azure Table Storage.
type DatabaseService struct {
	serviceClient  *aztables.ServiceClient
	profilesTable  string
	snapshotsTable string
}

// NewDatabaseService creates a new DatabaseService instance.
func NewDatabaseService(cfg config.StorageConfig) (*DatabaseService, error) {
	tableURL := cfg.TableServiceURL
	if tableURL == "" {
		return nil, fmt.Errorf("TABLE_SERVICE_URL environment variable is required")
	}

	var client *aztables.ServiceClient

	// Check if running locally with Azurite (http endpoint)
	if isLocal(tableURL) {
		slog.Info("using azurite credentials for database service")
		name, key := getAzuriteCredentials()
		cred, err := aztables.NewSharedKeyCredential(name, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = aztables.NewServiceClientWithSharedKey(tableURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client with shared key: %w", err)
		}
	} else {
		// Production: Managed Identity
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = aztables.NewServiceClient(tableURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client: %w", err)
		}
	}

	svc := &DatabaseService{
		serviceClient:  client,
		profilesTable:  cfg.ProfilesTable,
		snapshotsTable: cfg.SnapshotsTable,
	}

	if err := svc.CreateTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("database service initialized successfully",
		"table_url", tableURL,
		"profiles_table", cfg.ProfilesTable,
		"snapshots_table", cfg.SnapshotsTable,
	)
	return svc, nil
}

// CreateTables ensures all required tables exist in Azure Table Storage.
func (s *DatabaseService) CreateTables(ctx context.Context) error {
	for _, tableName := range []string{s.profilesTable, s.snapshotsTable} {
		_, err := s.serviceClient.CreateTable(ctx, tableName, nil)
		if err != nil {
			var azErr *azcore.ResponseError
			if errors.As(err, &azErr) && azErr.ErrorCode == "TableAlreadyExists" {
				continue
			}
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}
	return nil
}

func (s *DatabaseService) getClient(tableName string) *aztables.Client {
	return s.serviceClient.NewClient(tableName)
}

// GetProfile retrieves the profile document of a user.
func (s *DatabaseService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	client := s.getClient(s.profilesTable)

	resp, err := client.GetEntity(ctx, profilePartition, tableKey(userID), nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}

	p, err := entityToProfile(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", userID, err)
	}
	return p, nil
}

// SaveProfile upserts the profile document of a user.
func (s *DatabaseService) SaveProfile(ctx context.Context, p models.Profile) error {
	client := s.getClient(s.profilesTable)

	entityJSON, err := profileToEntity(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", p.ID, err)
	}
	if _, err := client.UpsertEntity(ctx, entityJSON, nil); err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.ID, err)
	}
	return nil
}

// ListProfiles returns every stored profile.
func (s *DatabaseService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	client := s.getClient(s.profilesTable)

	filter := fmt.Sprintf("PartitionKey eq %s", odataString(profilePartition))
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
	})

	var profiles []models.Profile
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}
		for _, entity := range resp.Entities {
			p, err := entityToProfile(entity)
			if err != nil {
				slog.Warn("skipping malformed profile entity", "error", err)
				continue
			}
			profiles = append(profiles, *p)
		}
	}
	return profiles, nil
}

// GetSnapshot loads the last saved batch of a user.
func (s *DatabaseService) GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	client := s.getClient(s.snapshotsTable)

	filter := fmt.Sprintf("PartitionKey eq %s", odataString(tableKey(userID)))
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
	})

	var entities [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshot entities: %w", err)
		}
		entities = append(entities, resp.Entities...)
	}

	snap, err := entitiesToSnapshot(entities)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of %s: %w", userID, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, userID)
	}
	return snap, nil
}

// SaveSnapshot replaces the stored batch of a user, deleting rows of records
// that are no longer part of it.
func (s *DatabaseService) SaveSnapshot(ctx context.Context, userID string, snap models.Snapshot) error {
	client := s.getClient(s.snapshotsTable)
	pk := tableKey(userID)

	// 1. Get existing record row keys to find deletions
	filter := fmt.Sprintf("PartitionKey eq %s", odataString(pk))
	selectFields := "RowKey"
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
		Select: &selectFields,
	})

	existingRowKeys := make(map[string]bool)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list existing snapshot entities: %w", err)
		}
		for _, entity := range resp.Entities {
			var parsed map[string]any
			if err := json.Unmarshal(entity, &parsed); err != nil {
				continue
			}
			if rk, ok := parsed["RowKey"].(string); ok && strings.HasPrefix(rk, recordRowPrefix) {
				existingRowKeys[rk] = true
			}
		}
	}

	// 2. Prepare and submit operations
	actions, err := snapshotActions(pk, snap, existingRowKeys)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of %s: %w", userID, err)
	}

	for i := 0; i < len(actions); i += batchSize {
		end := min(i+batchSize, len(actions))
		if _, err := client.SubmitTransaction(ctx, actions[i:end], nil); err != nil {
			return fmt.Errorf("failed to submit transaction batch %d-%d: %w", i, end, err)
		}
	}

	slog.Info("saved snapshot", "user_id", userID, "records", len(snap.Records), "actions", len(actions))
	return nil
}

// snapshotActions builds the upserts for snap plus deletes for every
// existing record row it no longer contains. The summary row comes first.
func snapshotActions(pk string, snap models.Snapshot, existingRowKeys map[string]bool) ([]aztables.TransactionAction, error) {
	var actions []aztables.TransactionAction

	summary := aztables.EDMEntity{
		Entity: aztables.Entity{PartitionKey: pk, RowKey: summaryRowKey},
		Properties: map[string]any{
			"ExemptionCode": snap.ExemptionCode,
			"SavedAt":       aztables.EDMDateTime(snap.SavedAt),
			"RecordCount":   int32(len(snap.Records)),
		},
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	actions = append(actions, aztables.TransactionAction{
		ActionType: aztables.TransactionTypeInsertReplace,
		Entity:     summaryJSON,
	})

	newRowKeys := make(map[string]bool, len(snap.Records))
	for _, rec := range snap.Records {
		rowKey := recordRowKey(rec.ID)
		newRowKeys[rowKey] = true

		entity := aztables.EDMEntity{
			Entity: aztables.Entity{PartitionKey: pk, RowKey: rowKey},
			Properties: map[string]any{
				"ExemptionCode": rec.ExemptionCode,
				"Source":        string(rec.Source),
				"Date":          rec.Date,
				"Description":   rec.Description,
				"Gross":         aztables.EDMInt64(rec.Gross),
			},
		}
		entityJSON, err := json.Marshal(entity)
		if err != nil {
			return nil, err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeInsertReplace,
			Entity:     entityJSON,
		})
	}

	stale := make([]string, 0, len(existingRowKeys))
	for rk := range existingRowKeys {
		if !newRowKeys[rk] {
			stale = append(stale, rk)
		}
	}
	sort.Strings(stale)
	for _, rk := range stale {
		deleteJSON, _ := json.Marshal(map[string]any{
			"PartitionKey": pk,
			"RowKey":       rk,
		})
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeDelete,
			Entity:     deleteJSON,
		})
	}

	return actions, nil
}

// entitiesToSnapshot rebuilds a snapshot from its table rows. It returns nil
// when there is no summary row.
func entitiesToSnapshot(entities [][]byte) (*models.Snapshot, error) {
	var snap *models.Snapshot
	var recs []models.IncomeRecord

	for _, raw := range entities {
		var entity aztables.EDMEntity
		if err := json.Unmarshal(raw, &entity); err != nil {
			return nil, err
		}

		switch {
		case entity.RowKey == summaryRowKey:
			snap = &models.Snapshot{ExemptionCode: stringProp(entity.Properties, "ExemptionCode")}
			switch savedAt := entity.Properties["SavedAt"].(type) {
			case aztables.EDMDateTime:
				snap.SavedAt = time.Time(savedAt).UTC()
			case string:
				if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
					snap.SavedAt = t.UTC()
				}
			}
		case strings.HasPrefix(entity.RowKey, recordRowPrefix):
			id, err := strconv.ParseInt(strings.TrimPrefix(entity.RowKey, recordRowPrefix), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid record row key %q: %w", entity.RowKey, err)
			}
			gross, err := int64Prop(entity.Properties, "Gross")
			if err != nil {
				return nil, fmt.Errorf("invalid gross on row %q: %w", entity.RowKey, err)
			}
			recs = append(recs, models.IncomeRecord{
				ID:            id,
				ExemptionCode: stringProp(entity.Properties, "ExemptionCode"),
				Source:        models.IncomeSource(stringProp(entity.Properties, "Source")),
				Date:          stringProp(entity.Properties, "Date"),
				Description:   stringProp(entity.Properties, "Description"),
				Gross:         gross,
			})
		}
	}

	if snap == nil {
		return nil, nil
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	snap.Records = recs
	return snap, nil
}

func profileToEntity(p models.Profile) ([]byte, error) {
	documents, err := json.Marshal(p.Documents)
	if err != nil {
		return nil, err
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return nil, err
	}
	info, err := json.Marshal(p.Reports.Information)
	if err != nil {
		return nil, err
	}

	entity := map[string]any{
		"PartitionKey":      profilePartition,
		"RowKey":            tableKey(p.ID),
		"UserID":            p.ID,
		"Email":             p.Email,
		"FullName":          p.FullName,
		"PhotoURL":          p.PhotoURL,
		"Note":              p.Note,
		"CurrentStatus":     p.Reports.CurrentStatus.String(),
		"ReportInformation": string(info),
		"Documents":         string(documents),
		"History":           string(history),
		"CreatedAt":         p.CreatedAt.UTC().Format(time.RFC3339),
	}
	return json.Marshal(entity)
}

func entityToProfile(raw []byte) (*models.Profile, error) {
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	status, err := models.ParseReportStatus(stringProp(parsed, "CurrentStatus"))
	if err != nil {
		return nil, err
	}

	p := &models.Profile{
		ID:       stringProp(parsed, "UserID"),
		Email:    stringProp(parsed, "Email"),
		FullName: stringProp(parsed, "FullName"),
		PhotoURL: stringProp(parsed, "PhotoURL"),
		Note:     stringProp(parsed, "Note"),
		Reports:  models.Reports{CurrentStatus: status},
	}
	if p.ID == "" {
		p.ID = stringProp(parsed, "RowKey")
	}

	if v := stringProp(parsed, "Documents"); v != "" {
		if err := json.Unmarshal([]byte(v), &p.Documents); err != nil {
			return nil, fmt.Errorf("invalid documents: %w", err)
		}
	}
	if v := stringProp(parsed, "History"); v != "" {
		if err := json.Unmarshal([]byte(v), &p.History); err != nil {
			return nil, fmt.Errorf("invalid history: %w", err)
		}
	}
	if v := stringProp(parsed, "ReportInformation"); v != "" {
		if err := json.Unmarshal([]byte(v), &p.Reports.Information); err != nil {
			return nil, fmt.Errorf("invalid report information: %w", err)
		}
	}
	if v := stringProp(parsed, "CreatedAt"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.CreatedAt = t
		}
	}
	return p, nil
}

func recordRowKey(id int64) string {
	return fmt.Sprintf("%s%010d", recordRowPrefix, id)
}

// tableKey strips the characters Table Storage forbids in keys.
func tableKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '#', '?':
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// odataString quotes s as an OData string literal.
func odataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isNotFound(err error) bool {
	var azErr *azcore.ResponseError
	return errors.As(err, &azErr) && (azErr.StatusCode == http.StatusNotFound || azErr.ErrorCode == "ResourceNotFound")
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func int64Prop(props map[string]any, key string) (int64, error) {
	switch v := props[key].(type) {
	case aztables.EDMInt64:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, fmt.Errorf("missing %s", key)
	default:
		return 0, fmt.Errorf("unexpected type %T for %s", v, key)
	}
}
