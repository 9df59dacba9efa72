package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dsall/regvault/internal/bus"
	"github.com/dsall/regvault/internal/models"
	"github.com/dsall/regvault/internal/services"
)

func (a *App) printRecord(c *models.Client) {
	name := c.FirstName
	if c.LastName != "" {
		name += " " + c.LastName
	}
	sync := "unsynced"
	if c.Synced {
		sync = "synced"
	}
	fmt.Fprintf(a.out, "%s  %-24s %-10s %-8s %-8s v%d  %s\n",
		c.ID, name, c.Category, c.PaymentStatus, sync, c.Version,
		c.LastUpdated.Format(time.RFC3339))
}

// Add interactively collects a registration and submits it.
func (a *App) Add(ctx context.Context) error {
	first, err := GetSimpleText(a.reader, "First name", a.out)
	if err != nil {
		return err
	}
	last, err := GetSimpleText(a.reader, "Last name (optional)", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	phone, err := GetSimpleText(a.reader, "Phone", a.out)
	if err != nil {
		return err
	}
	cat, err := GetSimpleText(a.reader, "Category (single/pair)", a.out)
	if err != nil {
		return err
	}
	if cat == "" {
		cat = string(models.CategorySingle)
	}

	id, err := a.store.Submit(ctx, services.Registration{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     phone,
		Category:  models.Category(cat),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered:", id)
	return nil
}

// List prints every record, newest first within insertion order.
func (a *App) List(ctx context.Context) error {
	records, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records.")
		return nil
	}
	for i := range records {
		a.printRecord(&records[i])
	}
	return nil
}

// Show prints a single record together with its payment history.
func (a *App) Show(ctx context.Context, id string) error {
	c, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	a.printRecord(c)
	fmt.Fprintf(a.out, "  email: %s  phone: %s  device: %s\n", c.Email, c.Phone, c.SourceDevice)

	pays, err := a.store.Payments(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range pays {
		fmt.Fprintf(a.out, "  payment %s (%s) at %s\n", p.ID, p.Status, p.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// Search prints records whose name, email or phone contains term.
func (a *App) Search(ctx context.Context, term string) error {
	records, err := a.store.Search(ctx, term)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	for i := range records {
		a.printRecord(&records[i])
	}
	return nil
}

// Pay records a payment against the given record.
func (a *App) Pay(ctx context.Context, id string) error {
	p, err := a.store.RecordPayment(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Payment recorded:", p.ID)
	return nil
}

// Delete removes a record and its payments.
func (a *App) Delete(ctx context.Context, id string) error {
	deleted, err := a.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(a.out, "Not found:", id)
		return nil
	}
	fmt.Fprintln(a.out, "Deleted:", id)
	return nil
}

// Sync requests an immediate sweep over unsynced records.
func (a *App) Sync(ctx context.Context) error {
	a.changes.Publish(bus.Message{
		Action:       bus.ActionForceSync,
		Timestamp:    time.Now(),
		SourceDevice: a.store.DeviceID(),
	})
	fmt.Fprintln(a.out, "Sync requested.")
	return nil
}

// Backup creates a dated snapshot immediately.
func (a *App) Backup(ctx context.Context) error {
	s, err := a.backups.CreateSnapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Snapshot created:", s.ID)
	return nil
}

// Backups lists the stored snapshots, newest first.
func (a *App) Backups(ctx context.Context) error {
	infos, err := a.backups.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(a.out, "No snapshots.")
		return nil
	}
	for _, in := range infos {
		fmt.Fprintf(a.out, "%s  %s  clients=%d payments=%d\n",
			in.ID, in.Timestamp.Format(time.RFC3339), in.ClientCount, in.PaymentCount)
	}
	return nil
}

// Restore replays the snapshot with the given id into the store.
func (a *App) Restore(ctx context.Context, id string) error {
	if err := a.backups.Restore(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Restored snapshot:", id)
	return nil
}

// Export writes the full store contents to a JSON file.
func (a *App) Export(ctx context.Context, path string) error {
	exp, err := a.store.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d records to %s\n", exp.Stats.TotalClients, path)
	return nil
}

// Import merges records from a JSON export file into the store.
func (a *App) Import(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var exp models.Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return err
	}
	applied, err := a.store.Import(ctx, &exp)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d of %d records from %s\n", applied, len(exp.Clients), path)
	return nil
}

// Diag prints store diagnostics.
func (a *App) Diag(ctx context.Context) error {
	d, err := a.store.Diagnostics(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "initialized:  %v (schema v%d, reset=%v)\n", d.Initialized, d.SchemaVersion, d.ResetOccurred)
	fmt.Fprintf(a.out, "records:      %d total, %d synced, %d unsynced\n", d.TotalClients, d.SyncedClients, d.UnsyncedClients)
	fmt.Fprintf(a.out, "sync:         queue=%d syncing=%v\n", d.QueueDepth, d.Syncing)
	fmt.Fprintf(a.out, "obfuscation:  %v\n", d.ObfuscationEnabled)
	if !d.LastBackupAt.IsZero() {
		fmt.Fprintf(a.out, "last backup:  %s\n", d.LastBackupAt.Format(time.RFC3339))
	}
	m := d.Metrics
	fmt.Fprintf(a.out, "metrics:      saves=%d ok/%d failed, syncs=%d/%d success=%.0f%% avg=%s uptime=%s\n",
		m.SaveSuccesses, m.SaveFailures, m.SyncSuccesses, m.SyncAttempts,
		m.SyncSuccessRate*100, m.AvgSyncDuration, m.Uptime.Round(time.Second))
	return nil
}
