// Package manifest loads the list of assets a cache version must hold.
//
// A manifest file is YAML (JSON is accepted as a YAML subset) in one of two
// shapes. The full form names the version alongside the assets:
//
//	version: zyzz-legacy-v2
//	assets:
//	  - /
//	  - /index.html
//	  - https://cdnjs.cloudflare.com/ajax/libs/gsap/3.12.4/gsap.min.js
//
// The bare form is just the list of assets.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is a parsed asset manifest.
type Manifest struct {
	// Version is the cache version identifier, if the file sets one.
	Version string `yaml:"version"`
	// Assets are same-origin paths or absolute URLs, in install order.
	Assets []string `yaml:"assets"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest document.
// Blank entries are rejected; surrounding whitespace is trimmed.
func Parse(data []byte) (*Manifest, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}

	m := &Manifest{}
	if len(node.Content) > 0 {
		switch doc := node.Content[0]; doc.Kind {
		case yaml.SequenceNode:
			if err := doc.Decode(&m.Assets); err != nil {
				return nil, err
			}
		case yaml.MappingNode:
			if err := doc.Decode(m); err != nil {
				return nil, err
			}
		default:
			return nil, errors.New("manifest must be a mapping or a list of assets")
		}
	}

	for i, asset := range m.Assets {
		asset = strings.TrimSpace(asset)
		if asset == "" {
			return nil, fmt.Errorf("asset %d is empty", i)
		}
		m.Assets[i] = asset
	}
	m.Version = strings.TrimSpace(m.Version)
	return m, nil
}

// DefaultVersion is the version identifier paired with [Default].
const DefaultVersion = "zyzz-legacy-v1"

// Default returns the asset list of the promotional site: its pages, styles,
// scripts and images, plus the CDN libraries they load.
func Default() *Manifest {
	return &Manifest{
		Version: DefaultVersion,
		Assets: []string{
			"/",
			"/index.html",
			"/mythos.html",
			"/blueprint.html",
			"/vault.html",
			"/audio.html",
			"/styles/main.css",
			"/styles/home.css",
			"/styles/mythos.css",
			"/styles/blueprint.css",
			"/styles/vault.css",
			"/styles/audio.css",
			"/js/main.js",
			"/js/hero.js",
			"/js/parallax.js",
			"/js/three-scene.js",
			"/js/stats.js",
			"/js/gallery.js",
			"/js/audio-player.js",
			"/assets/images/favicon.png",
			"/assets/images/hero_poster.png",
			"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css",
			"https://cdnjs.cloudflare.com/ajax/libs/gsap/3.12.4/gsap.min.js",
			"https://cdnjs.cloudflare.com/ajax/libs/gsap/3.12.4/ScrollTrigger.min.js",
			"https://cdnjs.cloudflare.com/ajax/libs/three.js/r128/three.min.js",
		},
	}
}
