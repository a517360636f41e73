package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"meshinv/internal/domain"
	"meshinv/internal/repository"
)

// installNumberLock serializes install number assignment
const installNumberLock = "install_number_lock"

// Tx implements repository.Tx
type Tx struct {
	tx      *sqlx.Tx
	dialect Dialect
}

var _ repository.Tx = (*Tx)(nil)

// q rebinds a ?-placeholder query for the dialect
func (t *Tx) q(query string) string {
	return sqlx.Rebind(sqlx.BindType(t.dialect.Name()), query)
}

// forUpdate appends the row lock clause for the dialect
func (t *Tx) forUpdate(query string) string {
	return t.q(query + t.dialect.ForUpdate())
}

func (t *Tx) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := t.tx.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func donatableStatuses() []string {
	var statuses []string
	for _, s := range domain.DonatableInstallStatuses() {
		statuses = append(statuses, string(s))
	}
	return statuses
}

func now() time.Time {
	return time.Now().UTC()
}

// LockNamed implements repository.Tx
func (t *Tx) LockNamed(ctx context.Context, name string) error {
	if err := t.dialect.LockNamed(ctx, t.tx, name); err != nil {
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return nil
}

// ============================================================================
// Buildings
// ============================================================================

// CreateBuilding implements repository.Tx
func (t *Tx) CreateBuilding(ctx context.Context, b *domain.Building) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}

	_, err := t.exec(ctx, `INSERT INTO buildings (`+buildingColumns+`) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Address, b.PrimaryNodeID, b.Notes, b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert building: %w", err)
	}
	return nil
}

// GetBuilding implements repository.Tx
func (t *Tx) GetBuilding(ctx context.Context, id string) (*domain.Building, error) {
	var b domain.Building
	found, err := t.get(ctx, &b, t.q(`SELECT `+buildingColumns+` FROM buildings WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("get building: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &b, nil
}

// SetBuildingPrimaryNode implements repository.Tx
func (t *Tx) SetBuildingPrimaryNode(ctx context.Context, buildingID, nodeID string) error {
	n, err := t.exec(ctx, `UPDATE buildings SET primary_node_id = ? WHERE id = ?`, nodeID, buildingID)
	if err != nil {
		return fmt.Errorf("set primary node: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("building %s: %w", buildingID, domain.ErrNotFound)
	}
	return nil
}

// ============================================================================
// Nodes
// ============================================================================

// CreateNode implements repository.Tx
func (t *Tx) CreateNode(ctx context.Context, n *domain.Node) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	ts := now()
	n.CreatedAt, n.UpdatedAt = ts, ts

	_, err := t.exec(ctx, `INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.NetworkNumber, string(n.Status), n.Name, n.Notes, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

// GetNode implements repository.Tx
func (t *Tx) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	var n domain.Node
	found, err := t.get(ctx, &n, t.q(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

// GetNodeByNetworkNumber implements repository.Tx
func (t *Tx) GetNodeByNetworkNumber(ctx context.Context, nn int64) (*domain.Node, error) {
	var n domain.Node
	found, err := t.get(ctx, &n, t.q(`SELECT `+nodeColumns+` FROM nodes WHERE network_number = ?`), nn)
	if err != nil {
		return nil, fmt.Errorf("get node by network number: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

// UpdateNode implements repository.Tx. A network number, once set, cannot
// be changed or cleared.
func (t *Tx) UpdateNode(ctx context.Context, n *domain.Node) error {
	n.UpdatedAt = now()

	affected, err := t.exec(ctx, `
		UPDATE nodes SET network_number = ?, status = ?, name = ?, notes = ?, updated_at = ?
		WHERE id = ? AND (network_number IS NULL OR network_number = ?)`,
		n.NetworkNumber, string(n.Status), n.Name, n.Notes, n.UpdatedAt, n.ID, n.NetworkNumber)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := t.GetNode(ctx, n.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("node %s: %w", n.ID, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", existing, domain.ErrImmutableNetworkNumber)
}

// AddNodeBuilding implements repository.Tx
func (t *Tx) AddNodeBuilding(ctx context.Context, nodeID, buildingID string) error {
	_, err := t.exec(ctx, `
		INSERT INTO node_buildings (node_id, building_id) VALUES (?, ?)
		ON CONFLICT (node_id, building_id) DO NOTHING`, nodeID, buildingID)
	if err != nil {
		return fmt.Errorf("associate node with building: %w", err)
	}
	return nil
}

// NodeBuildings implements repository.Tx. Buildings whose primary node is
// nodeID come first.
func (t *Tx) NodeBuildings(ctx context.Context, nodeID string) ([]domain.Building, error) {
	var buildings []domain.Building
	err := t.tx.SelectContext(ctx, &buildings, t.q(`
		SELECT b.id, b.address, b.primary_node_id, b.notes, b.created_at
		FROM buildings b
		JOIN node_buildings nb ON nb.building_id = b.id
		WHERE nb.node_id = ?
		ORDER BY CASE WHEN b.primary_node_id = ? THEN 0 ELSE 1 END, b.created_at, b.id`),
		nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list node buildings: %w", err)
	}
	return buildings, nil
}

// ============================================================================
// Installs
// ============================================================================

// CreateInstall implements repository.Tx. A zero InstallNumber is assigned
// the next free number.
func (t *Tx) CreateInstall(ctx context.Context, i *domain.Install) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	ts := now()
	i.CreatedAt, i.UpdatedAt = ts, ts

	if i.InstallNumber == 0 {
		if err := t.LockNamed(ctx, installNumberLock); err != nil {
			return err
		}
		var next int64
		if _, err := t.get(ctx, &next, `SELECT COALESCE(MAX(install_number), 0) + 1 FROM installs`); err != nil {
			return fmt.Errorf("next install number: %w", err)
		}
		i.InstallNumber = next
	}

	_, err := t.exec(ctx, `INSERT INTO installs (`+installColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.InstallNumber, string(i.Status), i.BuildingID, i.NodeID, i.Notes, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert install: %w", err)
	}
	return nil
}

// GetInstall implements repository.Tx
func (t *Tx) GetInstall(ctx context.Context, id string) (*domain.Install, error) {
	var i domain.Install
	found, err := t.get(ctx, &i, t.q(`SELECT `+installColumns+` FROM installs WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("get install: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &i, nil
}

// GetInstallForUpdate implements repository.Tx
func (t *Tx) GetInstallForUpdate(ctx context.Context, id string) (*domain.Install, error) {
	var i domain.Install
	found, err := t.get(ctx, &i, t.forUpdate(`SELECT `+installColumns+` FROM installs WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("get install: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &i, nil
}

// GetInstallByNumber implements repository.Tx
func (t *Tx) GetInstallByNumber(ctx context.Context, installNumber int64) (*domain.Install, error) {
	var i domain.Install
	found, err := t.get(ctx, &i, t.forUpdate(`SELECT `+installColumns+` FROM installs WHERE install_number = ?`), installNumber)
	if err != nil {
		return nil, fmt.Errorf("get install by number: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &i, nil
}

// UpdateInstall implements repository.Tx
func (t *Tx) UpdateInstall(ctx context.Context, i *domain.Install) error {
	i.UpdatedAt = now()

	affected, err := t.exec(ctx, `
		UPDATE installs SET status = ?, building_id = ?, node_id = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		string(i.Status), i.BuildingID, i.NodeID, i.Notes, i.UpdatedAt, i.ID)
	if err != nil {
		return fmt.Errorf("update install: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("install %s: %w", i.ID, domain.ErrNotFound)
	}
	return nil
}

// ReservedNetworkNumbers implements repository.Tx
func (t *Tx) ReservedNetworkNumbers(ctx context.Context) ([]int64, error) {
	query, args, err := sqlx.In(`
		SELECT network_number FROM nodes WHERE network_number IS NOT NULL
		UNION
		SELECT i.install_number FROM installs i
		LEFT JOIN nodes n ON n.id = i.node_id
		WHERE i.status NOT IN (?) AND n.network_number IS NULL`,
		donatableStatuses())
	if err != nil {
		return nil, fmt.Errorf("build reserved query: %w", err)
	}

	var reserved []int64
	if err := t.tx.SelectContext(ctx, &reserved, t.q(query), args...); err != nil {
		return nil, fmt.Errorf("list reserved network numbers: %w", err)
	}
	return reserved, nil
}

// ============================================================================
// Devices
// ============================================================================

// CreateDevice implements repository.Tx
func (t *Tx) CreateDevice(ctx context.Context, d *domain.Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	ts := now()
	d.CreatedAt, d.UpdatedAt = ts, ts

	_, err := t.exec(ctx, `INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceInsertArgs(d)...)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetDevice implements repository.Tx
func (t *Tx) GetDevice(ctx context.Context, id string) (*domain.Device, error) {
	var row deviceRow
	found, err := t.get(ctx, &row, t.q(`SELECT `+deviceColumns+` FROM devices WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	if !found {
		return nil, nil
	}
	d := row.toDomain()
	return &d, nil
}

func (t *Tx) selectDevices(ctx context.Context, query string, args ...interface{}) ([]domain.Device, error) {
	var rows []deviceRow
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	devices := make([]domain.Device, 0, len(rows))
	for i := range rows {
		devices = append(devices, rows[i].toDomain())
	}
	return devices, nil
}

// FindDevicesByExternalID implements repository.Tx
func (t *Tx) FindDevicesByExternalID(ctx context.Context, externalID string) ([]domain.Device, error) {
	devices, err := t.selectDevices(ctx,
		t.q(`SELECT `+deviceColumns+` FROM devices WHERE external_id = ? ORDER BY created_at, id`),
		externalID)
	if err != nil {
		return nil, fmt.Errorf("find devices by external id: %w", err)
	}
	return devices, nil
}

// FindDevicesByExternalIDForUpdate implements repository.Tx
func (t *Tx) FindDevicesByExternalIDForUpdate(ctx context.Context, externalID string) ([]domain.Device, error) {
	devices, err := t.selectDevices(ctx,
		t.forUpdate(`SELECT `+deviceColumns+` FROM devices WHERE external_id = ? ORDER BY created_at, id`),
		externalID)
	if err != nil {
		return nil, fmt.Errorf("find devices by external id: %w", err)
	}
	return devices, nil
}

// ListDevicesWithExternalID implements repository.Tx
func (t *Tx) ListDevicesWithExternalID(ctx context.Context) ([]domain.Device, error) {
	devices, err := t.selectDevices(ctx,
		t.q(`SELECT `+deviceColumns+` FROM devices WHERE external_id IS NOT NULL ORDER BY created_at, id`))
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// UpdateDevice implements repository.Tx. The device kind is fixed at
// creation; variant columns are rewritten from d.Variant.
func (t *Tx) UpdateDevice(ctx context.Context, d *domain.Device) error {
	d.UpdatedAt = now()
	args := deviceInsertArgs(d)

	// node_id through notes, then the variant columns; kind is skipped
	set := append(args[1:8:8], args[9:16]...)
	set = append(set, d.UpdatedAt, d.ID)

	affected, err := t.exec(ctx, `
		UPDATE devices SET node_id = ?, name = ?, external_id = ?, status = ?, install_date = ?,
			abandon_date = ?, notes = ?, azimuth_deg = ?, width_deg = ?, radius_km = ?,
			azimuth_guessed = ?, latitude = ?, longitude = ?, altitude = ?, updated_at = ?
		WHERE id = ?`, set...)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("device %s: %w", d.ID, domain.ErrNotFound)
	}
	return nil
}

// ============================================================================
// Links
// ============================================================================

// CreateLink implements repository.Tx
func (t *Tx) CreateLink(ctx context.Context, l *domain.Link) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	ts := now()
	l.CreatedAt, l.UpdatedAt = ts, ts

	_, err := t.exec(ctx, `
		INSERT INTO links (id, from_device_id, to_device_id, external_id, status, type,
			install_date, abandon_date, last_functioning_date_estimate, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.FromDeviceID, l.ToDeviceID, stringToNull(l.ExternalID), string(l.Status), string(l.Type),
		timePtrToNull(l.InstallDate), timePtrToNull(l.AbandonDate), timePtrToNull(l.LastFunctioningDateEstimate),
		l.Notes, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

func (t *Tx) selectLinks(ctx context.Context, query string, args ...interface{}) ([]domain.Link, error) {
	var links []domain.Link
	if err := t.tx.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, err
	}
	return links, nil
}

// FindLinksByExternalIDForUpdate implements repository.Tx
func (t *Tx) FindLinksByExternalIDForUpdate(ctx context.Context, externalID string) ([]domain.Link, error) {
	links, err := t.selectLinks(ctx,
		t.forUpdate(`SELECT `+linkColumns+` FROM links WHERE external_id = ? ORDER BY created_at, id`),
		externalID)
	if err != nil {
		return nil, fmt.Errorf("find links by external id: %w", err)
	}
	return links, nil
}

// FindLinksByDevicePairForUpdate implements repository.Tx. Direction is
// ignored.
func (t *Tx) FindLinksByDevicePairForUpdate(ctx context.Context, deviceA, deviceB string) ([]domain.Link, error) {
	links, err := t.selectLinks(ctx,
		t.forUpdate(`SELECT `+linkColumns+` FROM links
			WHERE (from_device_id = ? AND to_device_id = ?) OR (from_device_id = ? AND to_device_id = ?)
			ORDER BY created_at, id`),
		deviceA, deviceB, deviceB, deviceA)
	if err != nil {
		return nil, fmt.Errorf("find links by device pair: %w", err)
	}
	return links, nil
}

// ListLinksWithExternalID implements repository.Tx
func (t *Tx) ListLinksWithExternalID(ctx context.Context) ([]domain.Link, error) {
	links, err := t.selectLinks(ctx,
		t.q(`SELECT `+linkColumns+` FROM links WHERE external_id IS NOT NULL ORDER BY created_at, id`))
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// ListActiveLinks implements repository.Tx
func (t *Tx) ListActiveLinks(ctx context.Context) ([]domain.Link, error) {
	links, err := t.selectLinks(ctx,
		t.q(`SELECT `+linkColumns+` FROM links WHERE status = ? ORDER BY created_at, id`),
		string(domain.LinkStatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active links: %w", err)
	}
	return links, nil
}

// UpdateLink implements repository.Tx
func (t *Tx) UpdateLink(ctx context.Context, l *domain.Link) error {
	l.UpdatedAt = now()

	affected, err := t.exec(ctx, `
		UPDATE links SET from_device_id = ?, to_device_id = ?, external_id = ?, status = ?, type = ?,
			install_date = ?, abandon_date = ?, last_functioning_date_estimate = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		l.FromDeviceID, l.ToDeviceID, stringToNull(l.ExternalID), string(l.Status), string(l.Type),
		timePtrToNull(l.InstallDate), timePtrToNull(l.AbandonDate), timePtrToNull(l.LastFunctioningDateEstimate),
		l.Notes, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link %s: %w", l.ID, domain.ErrNotFound)
	}
	return nil
}

// ============================================================================
// Line of Sight
// ============================================================================

// CreateLOS implements repository.Tx
func (t *Tx) CreateLOS(ctx context.Context, los *domain.LOS) error {
	if los.ID == "" {
		los.ID = uuid.NewString()
	}
	ts := now()
	los.CreatedAt, los.UpdatedAt = ts, ts

	_, err := t.exec(ctx, `INSERT INTO line_of_sight (`+losColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		los.ID, los.FromBuildingID, los.ToBuildingID, string(los.Source), los.AnalysisDate.UTC(),
		los.Notes, los.CreatedAt, los.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert line of sight: %w", err)
	}
	return nil
}

// FindLOSByBuildingPairForUpdate implements repository.Tx. Direction is
// ignored.
func (t *Tx) FindLOSByBuildingPairForUpdate(ctx context.Context, buildingA, buildingB string) ([]domain.LOS, error) {
	var records []domain.LOS
	err := t.tx.SelectContext(ctx, &records,
		t.forUpdate(`SELECT `+losColumns+` FROM line_of_sight
			WHERE (from_building_id = ? AND to_building_id = ?) OR (from_building_id = ? AND to_building_id = ?)
			ORDER BY created_at, id`),
		buildingA, buildingB, buildingB, buildingA)
	if err != nil {
		return nil, fmt.Errorf("find line of sight: %w", err)
	}
	return records, nil
}

// UpdateLOS implements repository.Tx
func (t *Tx) UpdateLOS(ctx context.Context, los *domain.LOS) error {
	los.UpdatedAt = now()

	affected, err := t.exec(ctx, `
		UPDATE line_of_sight SET source = ?, analysis_date = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		string(los.Source), los.AnalysisDate.UTC(), los.Notes, los.UpdatedAt, los.ID)
	if err != nil {
		return fmt.Errorf("update line of sight: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("line of sight %s: %w", los.ID, domain.ErrNotFound)
	}
	return nil
}
