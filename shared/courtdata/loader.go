package courtdata

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/lafriks/go-tiled"
)

// DefaultPath is the built-in court inside Builtin.
const DefaultPath = "courts/default.tmx"

//go:embed courts/*.tmx
var Builtin embed.FS

// Load parses a TMX court. It takes an fs.FS so callers can pass the
// embedded courts or os.DirFS.
func Load(fsys fs.FS, tmxPath string) (*Court, error) {
	courtMap, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}

	court := &Court{
		Width:  float64(courtMap.Width * courtMap.TileWidth),
		Height: float64(courtMap.Height * courtMap.TileHeight),
	}
	if court.Width <= 0 || court.Height <= 0 {
		return nil, fmt.Errorf("court %s has no area", tmxPath)
	}

	for _, og := range courtMap.ObjectGroups {
		var dst *[]Spot
		switch og.Name {
		case "Spawns":
			dst = &court.Spawns
		case "Inbounds":
			dst = &court.Inbounds
		case "Hoops":
			dst = &court.Hoops
		default:
			continue
		}
		for _, o := range og.Objects {
			*dst = append(*dst, Spot{
				X:    o.X,
				Y:    o.Y,
				Team: o.Properties.GetInt("team"),
				Slot: o.Properties.GetInt("slot"),
			})
		}
	}

	sort.Slice(court.Spawns, func(i, j int) bool {
		a, b := court.Spawns[i], court.Spawns[j]
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.Slot < b.Slot
	})

	return court, nil
}

// LoadDefault parses the embedded default court.
func LoadDefault() (*Court, error) {
	return Load(Builtin, DefaultPath)
}

// LoadPath parses a court from disk, or the default court when path is empty.
func LoadPath(path string) (*Court, error) {
	if path == "" {
		return LoadDefault()
	}
	return Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}
