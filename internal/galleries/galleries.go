// 包 galleries：侧边栏视图与 Drive 文件夹的对应表，从 YAML 加载
package galleries

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// 图库类型
const (
	KindPanorama = "panorama"
	KindRegular  = "regular"
)

// Gallery：一个侧边栏视图
type Gallery struct {
	View     string `yaml:"-" json:"view"`
	Title    string `yaml:"title" json:"title"`
	FolderID string `yaml:"folderId" json:"folderId"`
	Kind     string `yaml:"kind" json:"kind"`
	Order    int    `yaml:"order" json:"-"`
}

type file struct {
	Galleries map[string]Gallery `yaml:"galleries"`
}

// Config：只读图库表，按 order 再按 view 排序
type Config struct {
	list   []Gallery
	byView map[string]Gallery
}

// Parse：读取 YAML；kind 缺省时 panorama 视图为全景，其余为普通图库
// 约束：folderId 必填
func Parse(r io.Reader) (*Config, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse gallery config: %w", err)
	}
	c := &Config{byView: make(map[string]Gallery, len(f.Galleries))}
	for view, g := range f.Galleries {
		if g.FolderID == "" {
			return nil, fmt.Errorf("gallery %q: folderId is required", view)
		}
		g.View = view
		if g.Kind == "" {
			if view == KindPanorama {
				g.Kind = KindPanorama
			} else {
				g.Kind = KindRegular
			}
		}
		if g.Kind != KindPanorama && g.Kind != KindRegular {
			return nil, fmt.Errorf("gallery %q: unknown kind %q", view, g.Kind)
		}
		if g.Title == "" {
			g.Title = view
		}
		c.byView[view] = g
		c.list = append(c.list, g)
	}
	sort.Slice(c.list, func(i, j int) bool {
		if c.list[i].Order != c.list[j].Order {
			return c.list[i].Order < c.list[j].Order
		}
		return c.list[i].View < c.list[j].View
	})
	return c, nil
}

// Load：path 为空时返回空表
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{byView: map[string]Gallery{}}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (c *Config) List() []Gallery {
	out := make([]Gallery, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Config) Get(view string) (Gallery, bool) {
	g, ok := c.byView[view]
	return g, ok
}
