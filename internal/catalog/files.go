package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"evalgo.org/muxsite/internal/domain"
	"evalgo.org/muxsite/internal/storage"
)

// Upload is a candidate file offered for a package
type Upload struct {
	Name        string
	ContentType string
}

// IsXML reports whether u looks like an XML file by name or content type.
func (u Upload) IsXML() bool {
	if strings.HasSuffix(strings.ToLower(u.Name), ".xml") {
		return true
	}
	mediaType := strings.TrimSpace(strings.Split(u.ContentType, ";")[0])
	return strings.EqualFold(mediaType, "text/xml")
}

// PackageFiles tracks the XML file names attached to each package.
// Only names are stored, never contents.
type PackageFiles struct {
	store  storage.Storage
	logger logrus.FieldLogger
}

// NewPackageFiles creates a file list over a scoped storage.
func NewPackageFiles(store storage.Storage, logger logrus.FieldLogger) *PackageFiles {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PackageFiles{store: store, logger: logger}
}

// Add appends the XML uploads to pkg and returns how many were kept.
func (f *PackageFiles) Add(ctx context.Context, pkg Package, uploads []Upload) (int, error) {
	pkg, err := ParsePackage(string(pkg))
	if err != nil {
		return 0, domain.NewValidationError("package", "unknown", "Please choose a package.")
	}
	if len(uploads) == 0 {
		return 0, domain.NewValidationError("files", "required", "Select at least one XML file.")
	}

	lists, err := f.load(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, u := range uploads {
		if !u.IsXML() {
			continue
		}
		lists[pkg] = append(lists[pkg], u.Name)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := f.save(ctx, lists); err != nil {
		return 0, err
	}

	f.logger.WithFields(logrus.Fields{
		"package": pkg,
		"added":   added,
		"offered": len(uploads),
	}).Info("XML files attached")
	return added, nil
}

// Remove deletes every entry called name from pkg.
func (f *PackageFiles) Remove(ctx context.Context, pkg Package, name string) error {
	pkg, err := ParsePackage(string(pkg))
	if err != nil {
		return domain.NewValidationError("package", "unknown", "Please choose a package.")
	}
	lists, err := f.load(ctx)
	if err != nil {
		return err
	}

	kept := lists[pkg][:0]
	for _, existing := range lists[pkg] {
		if existing != name {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(lists[pkg]) {
		return domain.NewNotFoundError("xml file", name)
	}
	lists[pkg] = kept
	return f.save(ctx, lists)
}

// List returns the file names of every package. All packages are present.
func (f *PackageFiles) List(ctx context.Context) (map[Package][]string, error) {
	return f.load(ctx)
}

func (f *PackageFiles) load(ctx context.Context) (map[Package][]string, error) {
	lists := make(map[Package][]string, len(Packages))
	for _, p := range Packages {
		lists[p] = []string{}
	}

	raw, ok, err := f.store.GetItem(ctx, FilesKey)
	if err != nil {
		return nil, domain.NewOperationError("load xml files", "failed to read file lists", err)
	}
	if !ok {
		return lists, nil
	}

	var stored map[Package][]string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		f.logger.WithError(err).Warn("Discarding malformed XML file lists")
		return lists, nil
	}
	for _, p := range Packages {
		if names := stored[p]; names != nil {
			lists[p] = names
		}
	}
	return lists, nil
}

func (f *PackageFiles) save(ctx context.Context, lists map[Package][]string) error {
	data, err := json.Marshal(lists)
	if err != nil {
		return fmt.Errorf("failed to marshal file lists: %w", err)
	}
	if err := f.store.SetItem(ctx, FilesKey, string(data)); err != nil {
		return domain.NewOperationError("save xml files", "failed to write file lists", err)
	}
	return nil
}
