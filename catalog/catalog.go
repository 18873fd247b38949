package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/mspronesti/simpledb/storage"
	"github.com/puzpuzpuz/xsync/v3"
)

// Catalog is the registry of tables: it maps table names to schemas and heap files, and resolves table ids to
// open heap files for the buffer pool (it implements storage.DBFileManager).
//
// The table definitions are serialized as a single JSON blob through a PersistenceProvider. Table ids are not
// stored: a table's id is derived from the absolute path of its heap file, so it is recomputed on load.
//
// Heap files are opened lazily on first use, and need a page fetcher to route their page accesses through.
// Since the buffer pool itself resolves files through the catalog, the fetcher is injected after construction
// with SetPageFetcher.
type Catalog struct {
	catalogState

	dataDir  string
	provider PersistenceProvider
	fetcher  storage.PageFetcher

	mu       sync.RWMutex
	tableMap map[string]*Table // TableName -> Table
	byID     *xsync.MapOf[common.ObjectID, *Table]

	openMu sync.Mutex
	files  *xsync.MapOf[common.ObjectID, *storage.HeapFile]
}

// Column represents the basic unit of a table schema.
type Column struct {
	Name string      `json:"name"`
	Type common.Type `json:"type"`
}

// Table groups a table's columns with the heap file that stores it. File is relative to the data directory.
type Table struct {
	Oid     common.ObjectID `json:"-"`
	Name    string          `json:"name"`
	File    string          `json:"file"`
	Columns []Column        `json:"columns"`

	desc *storage.TupleDesc
}

// TupleDesc returns the schema of the table's tuples.
func (t *Table) TupleDesc() *storage.TupleDesc {
	return t.desc
}

func (t *Table) buildTupleDesc() *storage.TupleDesc {
	types := make([]common.Type, len(t.Columns))
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = c.Type
		names[i] = c.Name
	}
	return storage.NewTupleDesc(types, names)
}

func (t *Table) String() string {
	b, _ := json.MarshalIndent(t, "", "  ")
	return string(b)
}

// PersistenceProvider abstracts how the catalog is saved to and loaded from disk.
type PersistenceProvider interface {
	LoadCatalogState() (json string, err error)
	SaveCatalogState(json string) error
}

type catalogState struct {
	Tables []*Table `json:"tables"`
}

func (c *Catalog) String() string {
	b, _ := json.MarshalIndent(c.catalogState, "", "  ")
	return string(b)
}

func (c *Catalog) toJSON() (string, error) {
	b, err := json.MarshalIndent(c.catalogState, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Catalog) fromJSON(jsonData string) error {
	if err := json.Unmarshal([]byte(jsonData), &c.catalogState); err != nil {
		return err
	}
	for _, t := range c.Tables {
		if len(t.Columns) == 0 {
			return fmt.Errorf("table '%s' has no columns", t.Name)
		}
		for _, col := range t.Columns {
			if col.Type != common.IntType && col.Type != common.StringType {
				return fmt.Errorf("column '%s' of table '%s' has unknown type %d", col.Name, t.Name, col.Type)
			}
		}
		types := make([]common.Type, len(t.Columns))
		for i, col := range t.Columns {
			types[i] = col.Type
		}
		if err := storage.CheckTupleWidth(types); err != nil {
			return fmt.Errorf("table '%s': %w", t.Name, err)
		}
		if err := c.register(t); err != nil {
			return err
		}
	}
	return nil
}

// register computes t's id and indexes it. The caller holds mu or has exclusive access to c.
func (c *Catalog) register(t *Table) error {
	oid, err := storage.FileID(filepath.Join(c.dataDir, t.File))
	if err != nil {
		return err
	}
	if other, exists := c.byID.Load(oid); exists {
		return common.NewError(common.DuplicateObjectError, "tables '%s' and '%s' share id %d", other.Name, t.Name, oid)
	}
	t.Oid = oid
	if t.desc == nil {
		t.desc = t.buildTupleDesc()
	}
	c.tableMap[t.Name] = t
	c.byID.Store(oid, t)
	return nil
}

// NewCatalog initializes a catalog whose heap files live in dataDir. It attempts to load existing state
// from the provider; if no state exists, it starts with an empty database.
func NewCatalog(dataDir string, provider PersistenceProvider) (*Catalog, error) {
	result := &Catalog{
		catalogState: catalogState{
			Tables: make([]*Table, 0),
		},
		dataDir:  dataDir,
		provider: provider,
		tableMap: make(map[string]*Table),
		byID:     xsync.NewMapOf[common.ObjectID, *Table](),
		files:    xsync.NewMapOf[common.ObjectID, *storage.HeapFile](),
	}

	jsonData, err := provider.LoadCatalogState()
	if errors.Is(err, os.ErrNotExist) {
		// Start from scratch
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if err = result.fromJSON(jsonData); err != nil {
		// Parsing errors are fatal system errors, usually indicating corruption
		return nil, fmt.Errorf("failed to parse catalog state: %w", err)
	}
	logging.WithComponent("catalog").Info("catalog loaded", "tables", len(result.Tables), "data_dir", dataDir)
	return result, nil
}

// SetPageFetcher sets the page fetcher heap files opened from now on route their page accesses through.
func (c *Catalog) SetPageFetcher(fetcher storage.PageFetcher) {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	c.fetcher = fetcher
}

// DataDir returns the directory holding the heap files.
func (c *Catalog) DataDir() string {
	return c.dataDir
}

// AddTable registers a new table named tableName with schema desc, stored in <dataDir>/<tableName>.dat, and
// persists the updated state. Every field of desc must be named. If a table with that name already exists, it
// returns DuplicateObjectError.
func (c *Catalog) AddTable(tableName string, desc *storage.TupleDesc) (*Table, error) {
	if tableName == "" {
		return nil, common.NewError(common.ConfigurationError, "table name must not be empty")
	}
	columns := make([]Column, desc.NumFields())
	seen := make(map[string]bool, len(columns))
	for i := range columns {
		name := desc.FieldName(i)
		if name == "" || seen[name] {
			return nil, common.NewError(common.ConfigurationError,
				"column %d of table '%s' needs a unique name, got '%s'", i, tableName, name)
		}
		seen[name] = true
		columns[i] = Column{Name: name, Type: desc.FieldType(i)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tableMap[tableName]; exists {
		return nil, common.NewError(common.DuplicateObjectError, "table '%s' already exists", tableName)
	}
	t := &Table{
		Name:    tableName,
		File:    tableName + ".dat",
		Columns: columns,
		desc:    desc,
	}
	if err := c.register(t); err != nil {
		return nil, err
	}
	c.Tables = append(c.Tables, t)

	jsonData, err := c.toJSON()
	if err == nil {
		err = c.provider.SaveCatalogState(jsonData)
	}
	if err != nil {
		c.Tables = c.Tables[:len(c.Tables)-1]
		delete(c.tableMap, tableName)
		c.byID.Delete(t.Oid)
		return nil, err
	}
	logging.WithTable(tableName).Info("table created", "table_id", uint32(t.Oid), "schema", desc.String())
	return t, nil
}

// GetTableMetadata fetches the definition of a specific table name.
func (c *Catalog) GetTableMetadata(tableName string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, exists := c.tableMap[tableName]
	if !exists {
		return nil, common.NewError(common.NoSuchObjectError, "table '%s' does not exist", tableName)
	}
	return table, nil
}

// GetTableID returns the id of the table named tableName.
func (c *Catalog) GetTableID(tableName string) (common.ObjectID, error) {
	t, err := c.GetTableMetadata(tableName)
	if err != nil {
		return common.InvalidObjectID, err
	}
	return t.Oid, nil
}

func (c *Catalog) lookup(oid common.ObjectID) (*Table, error) {
	t, ok := c.byID.Load(oid)
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "no table with id %d", oid)
	}
	return t, nil
}

// TableName returns the name of the table with the given id.
func (c *Catalog) TableName(oid common.ObjectID) (string, error) {
	t, err := c.lookup(oid)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// GetTupleDesc returns the schema of the table with the given id.
func (c *Catalog) GetTupleDesc(oid common.ObjectID) (*storage.TupleDesc, error) {
	t, err := c.lookup(oid)
	if err != nil {
		return nil, err
	}
	return t.TupleDesc(), nil
}

// GetHeapFile returns the heap file of the table with the given id, opening it on first use.
func (c *Catalog) GetHeapFile(oid common.ObjectID) (*storage.HeapFile, error) {
	if f, ok := c.files.Load(oid); ok {
		return f, nil
	}
	t, err := c.lookup(oid)
	if err != nil {
		return nil, err
	}

	c.openMu.Lock()
	defer c.openMu.Unlock()
	if f, ok := c.files.Load(oid); ok {
		return f, nil
	}
	if c.fetcher == nil {
		return nil, common.NewError(common.ConfigurationError, "catalog has no page fetcher to open table '%s'", t.Name)
	}
	f, err := storage.NewHeapFile(filepath.Join(c.dataDir, t.File), t.TupleDesc(), c.fetcher)
	if err != nil {
		return nil, err
	}
	c.files.Store(oid, f)
	logging.WithTable(t.Name).Debug("heap file opened", "path", f.Path())
	return f, nil
}

// GetDBFile implements storage.DBFileManager.
func (c *Catalog) GetDBFile(oid common.ObjectID) (storage.DBFile, error) {
	f, err := c.GetHeapFile(oid)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// TableNames returns the names of all tables, sorted.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tableMap))
	for name := range c.tableMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close syncs and closes every heap file opened through the catalog.
func (c *Catalog) Close() error {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	var errs []error
	c.files.Range(func(oid common.ObjectID, f *storage.HeapFile) bool {
		if err := f.Sync(); err != nil {
			errs = append(errs, err)
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		c.files.Delete(oid)
		return true
	})
	return errors.Join(errs...)
}

const CatalogFileName = "catalog.json"

type DiskCatalogManager struct {
	rootPath string
}

func NewDiskCatalogManager(rootPath string) *DiskCatalogManager {
	return &DiskCatalogManager{
		rootPath: rootPath,
	}
}

// LoadCatalogState implements the catalog.PersistenceProvider interface.
func (dcm *DiskCatalogManager) LoadCatalogState() (string, error) {
	path := filepath.Join(dcm.rootPath, CatalogFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err // Let the caller (Catalog) handle os.ErrNotExist
	}
	return string(content), nil
}

// SaveCatalogState implements the catalog.PersistenceProvider interface.
func (dcm *DiskCatalogManager) SaveCatalogState(jsonData string) error {
	// Write to a temporary file and rename it over the old state, so a crash never leaves a torn catalog
	tmpPath := filepath.Join(dcm.rootPath, CatalogFileName+".tmp")
	finalPath := filepath.Join(dcm.rootPath, CatalogFileName)

	if err := os.WriteFile(tmpPath, []byte(jsonData), 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, finalPath)
}
