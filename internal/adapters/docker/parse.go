package docker

import (
	"encoding/json"
	"strings"

	"github.com/docker/docker/pkg/stringid"
	units "github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/melih/containerpilot/internal/core/domain"
)

// psLine is one line of `docker ps --format "{{json .}}"`.
type psLine struct {
	ID        string `json:"ID"`
	Names     string `json:"Names"`
	Image     string `json:"Image"`
	Ports     string `json:"Ports"`
	State     string `json:"State"`
	Status    string `json:"Status"`
	CreatedAt string `json:"CreatedAt"`
}

// imageLine is one line of `docker images --format "{{json .}}"`.
type imageLine struct {
	ID           string `json:"ID"`
	Repository   string `json:"Repository"`
	Tag          string `json:"Tag"`
	Size         string `json:"Size"`
	CreatedSince string `json:"CreatedSince"`
	CreatedAt    string `json:"CreatedAt"`
}

// decodeLines parses newline-delimited JSON. Lines that fail to parse are
// logged and skipped.
func decodeLines[T any](out string, logger zerolog.Logger) []T {
	if out == "" {
		return nil
	}
	lines := lo.Filter(strings.Split(out, "\n"), func(line string, _ int) bool {
		return strings.TrimSpace(line) != ""
	})
	return lo.FilterMap(lines, func(line string, _ int) (T, bool) {
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("failed to parse docker output line")
			return v, false
		}
		return v, true
	})
}

func parseContainers(out string, logger zerolog.Logger) []domain.Container {
	return lo.Map(decodeLines[psLine](out, logger), func(c psLine, _ int) domain.Container {
		return domain.Container{
			ID:         c.ID,
			Name:       c.Names,
			Ports:      c.Ports,
			SSHPort:    domain.ParseSSHPort(c.Ports),
			Status:     c.State,
			StatusText: c.Status,
			Image:      c.Image,
			CreatedAt:  c.CreatedAt,
		}
	})
}

func parseImages(out string, logger zerolog.Logger) []domain.Image {
	return lo.Map(decodeLines[imageLine](out, logger), func(img imageLine, _ int) domain.Image {
		size, err := units.FromHumanSize(img.Size)
		if err != nil {
			size = 0
		}
		return domain.Image{
			ID:           img.ID,
			ShortID:      stringid.TruncateID(img.ID),
			Repository:   img.Repository,
			Tag:          img.Tag,
			Size:         img.Size,
			SizeBytes:    size,
			CreatedSince: img.CreatedSince,
		}
	})
}
