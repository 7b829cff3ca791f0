package meter

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/carbonwise/internal/errors"
)

// DefaultPowercapRoot is where the kernel exposes RAPL zones.
const DefaultPowercapRoot = "/sys/class/powercap"

// Top-level package zones only; subzones (intel-rapl:0:0) are contained in
// their parent's counter.
var raplZonePattern = regexp.MustCompile(`^intel-rapl:\d+$`)

type raplSource struct {
	name     string
	path     string
	maxRange float64
}

// NewRAPLSources discovers the RAPL package zones below root. It returns an
// error when no readable zone exists.
func NewRAPLSources(root string) ([]Source, error) {
	errFactory := errors.New()

	if root == "" {
		root = DefaultPowercapRoot
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errFactory.Wrap(ErrSourceUnusable, err).WithMessage("RAPL powercap not available")
	}

	var sources []Source
	for _, entry := range entries {
		if !raplZonePattern.MatchString(entry.Name()) {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		src := &raplSource{
			name: "rapl:" + entry.Name(),
			path: filepath.Join(dir, "energy_uj"),
		}
		if b, err := os.ReadFile(filepath.Join(dir, "name")); err == nil {
			src.name = "rapl:" + strings.TrimSpace(string(b))
		}
		if v, err := readMicrojoules(filepath.Join(dir, "max_energy_range_uj")); err == nil {
			src.maxRange = v
		}
		if _, err := src.Read(); err != nil {
			continue
		}

		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, errFactory.WithMessage(ErrSourceUnusable, "no readable RAPL zones")
	}

	return sources, nil
}

func (s *raplSource) Name() string {
	return s.name
}

func (s *raplSource) Read() (float64, error) {
	v, err := readMicrojoules(s.path)
	if err != nil {
		return 0, errors.New().Wrap(ErrSourceRead, err).WithData(s.name)
	}

	return v, nil
}

func (s *raplSource) MaxRange() float64 {
	return s.maxRange
}

func (*raplSource) Close() error {
	return nil
}

// readMicrojoules reads a sysfs counter in µJ and returns joules.
func readMicrojoules(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, err
	}

	return float64(v) / 1e6, nil
}
