package atlas

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// yamlMapFile is the top-level YAML structure for map snapshots.
type yamlMapFile struct {
	Rooms  []yamlRoom     `yaml:"rooms"`
	Labels map[string]int `yaml:"labels,omitempty"`
}

// yamlRoom is the YAML representation of a room.
type yamlRoom struct {
	Vnum        int         `yaml:"vnum"`
	Name        string      `yaml:"name"`
	Desc        string      `yaml:"desc,omitempty"`
	DynamicDesc string      `yaml:"dynamic_desc,omitempty"`
	Note        string      `yaml:"note,omitempty"`
	Terrain     string      `yaml:"terrain,omitempty"`
	Align       string      `yaml:"align,omitempty"`
	Light       string      `yaml:"light,omitempty"`
	Portable    string      `yaml:"portable,omitempty"`
	Ridable     string      `yaml:"ridable,omitempty"`
	Avoid       bool        `yaml:"avoid,omitempty"`
	MobFlags    []string    `yaml:"mob_flags,omitempty"`
	LoadFlags   []string    `yaml:"load_flags,omitempty"`
	Coords      *yamlCoords `yaml:"coords,omitempty"`
	Exits       []yamlExit  `yaml:"exits,omitempty"`
}

// yamlCoords is the YAML representation of room coordinates.
type yamlCoords struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// yamlExit is the YAML representation of an exit. A nil Target round-trips
// an unmapped exit.
type yamlExit struct {
	Dir       string   `yaml:"dir"`
	Target    *int     `yaml:"target,omitempty"`
	Flags     []string `yaml:"flags,omitempty"`
	Door      bool     `yaml:"door,omitempty"`
	DoorName  string   `yaml:"door_name,omitempty"`
	DoorFlags []string `yaml:"door_flags,omitempty"`
}

func sortedSet(set map[string]bool) []string {
	var out []string
	for f, on := range set {
		if on {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func encodeRoom(r *Room) yamlRoom {
	yr := yamlRoom{
		Vnum:        int(r.Vnum),
		Name:        r.Name,
		Desc:        r.Desc,
		DynamicDesc: r.DynamicDesc,
		Note:        r.Note,
		Terrain:     string(r.Terrain),
		Align:       string(r.Align),
		Light:       string(r.Light),
		Portable:    string(r.Portable),
		Ridable:     string(r.Ridable),
		Avoid:       r.Avoid,
		MobFlags:    sortedSet(r.MobFlags),
		LoadFlags:   sortedSet(r.LoadFlags),
	}
	if r.Coords != nil {
		yr.Coords = &yamlCoords{X: r.Coords.X, Y: r.Coords.Y, Z: r.Coords.Z}
	}
	var dirs []Direction
	for dir := range r.Exits {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i] < dirs[j] })
	for _, dir := range dirs {
		e := r.Exits[dir]
		ye := yamlExit{
			Dir:      string(dir),
			Door:     e.Door,
			DoorName: e.DoorName,
		}
		if e.Target != Undefined {
			target := int(e.Target)
			ye.Target = &target
		}
		for f, on := range e.Flags {
			if on {
				ye.Flags = append(ye.Flags, string(f))
			}
		}
		sort.Strings(ye.Flags)
		for f, on := range e.DoorFlags {
			if on {
				ye.DoorFlags = append(ye.DoorFlags, string(f))
			}
		}
		sort.Strings(ye.DoorFlags)
		yr.Exits = append(yr.Exits, ye)
	}
	return yr
}

func decodeRoom(yr yamlRoom) (*Room, error) {
	r := NewRoom(Vnum(yr.Vnum))
	r.Name = yr.Name
	r.Desc = yr.Desc
	r.DynamicDesc = yr.DynamicDesc
	r.Note = yr.Note
	r.Avoid = yr.Avoid
	if yr.Terrain != "" {
		r.Terrain = Terrain(yr.Terrain)
	}
	if yr.Align != "" {
		r.Align = Alignment(yr.Align)
	}
	if yr.Light != "" {
		r.Light = Light(yr.Light)
	}
	if yr.Portable != "" {
		r.Portable = Portability(yr.Portable)
	}
	if yr.Ridable != "" {
		r.Ridable = Ridability(yr.Ridable)
	}
	for _, f := range yr.MobFlags {
		r.MobFlags[f] = true
	}
	for _, f := range yr.LoadFlags {
		r.LoadFlags[f] = true
	}
	if yr.Coords != nil {
		r.Coords = &Coords{X: yr.Coords.X, Y: yr.Coords.Y, Z: yr.Coords.Z}
	}
	for _, ye := range yr.Exits {
		dir := Direction(ye.Dir)
		if !dir.IsValid() {
			return nil, fmt.Errorf("room %d: exit direction %q: %w", yr.Vnum, ye.Dir, ErrInvalidDirection)
		}
		e := &Exit{
			Target:    Undefined,
			Flags:     map[ExitFlag]bool{},
			Door:      ye.Door,
			DoorName:  ye.DoorName,
			DoorFlags: map[DoorFlag]bool{},
		}
		if ye.Target != nil {
			e.Target = Vnum(*ye.Target)
		}
		for _, f := range ye.Flags {
			e.Flags[ExitFlag(f)] = true
		}
		for _, f := range ye.DoorFlags {
			e.DoorFlags[DoorFlag(f)] = true
		}
		r.Exits[dir] = e
	}
	return r, nil
}

// Save writes the full graph to path as YAML. The write is atomic: a
// temporary file in the same directory is renamed over the target.
//
// Postcondition: path holds a snapshot that Load restores losslessly,
// including unmapped exits and one-way links.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	file := yamlMapFile{}
	var vnums []Vnum
	for v := range s.rooms {
		vnums = append(vnums, v)
	}
	sort.Slice(vnums, func(i, j int) bool { return vnums[i] < vnums[j] })
	for _, v := range vnums {
		file.Rooms = append(file.Rooms, encodeRoom(s.rooms[v]))
	}
	if len(s.labels) > 0 {
		file.Labels = make(map[string]int, len(s.labels))
		for name, v := range s.labels {
			file.Labels[name] = int(v)
		}
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encoding map snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating map directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a map snapshot written by Save and returns a populated store.
//
// Precondition: path must hold a valid snapshot.
// Postcondition: Returns a store whose graph satisfies every invariant:
// unique vnums, exit targets that resolve or are unmapped, labels that
// resolve. Otherwise returns a non-nil error.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map snapshot %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a snapshot from YAML bytes.
func LoadBytes(data []byte) (*Store, error) {
	var file yamlMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing map snapshot: %w", err)
	}

	s := NewStore()
	for _, yr := range file.Rooms {
		r, err := decodeRoom(yr)
		if err != nil {
			return nil, err
		}
		if _, exists := s.rooms[r.Vnum]; exists {
			return nil, fmt.Errorf("room %d: %w", r.Vnum, ErrVnumInUse)
		}
		s.rooms[r.Vnum] = r
		s.indexAdd(r)
		if r.Vnum >= s.nextVnum {
			s.nextVnum = r.Vnum + 1
		}
	}
	for _, r := range s.rooms {
		for dir, e := range r.Exits {
			if e.Target != Undefined {
				if _, ok := s.rooms[e.Target]; !ok {
					return nil, fmt.Errorf("room %d: exit %s targets missing vnum %d: %w",
						r.Vnum, dir, e.Target, ErrRoomNotFound)
				}
			}
		}
	}
	for name, v := range file.Labels {
		if _, ok := s.rooms[Vnum(v)]; !ok {
			return nil, fmt.Errorf("label %q targets missing vnum %d: %w", name, v, ErrRoomNotFound)
		}
		s.labels[name] = Vnum(v)
	}
	return s, nil
}

// LoadOrCreate loads the snapshot at path, or returns an empty store when
// the file does not exist yet.
func LoadOrCreate(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewStore(), nil
	}
	return Load(path)
}
