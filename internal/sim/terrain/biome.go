package terrain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownBiome = errors.New("terrain: unknown biome")

type Biome string

const (
	BiomePlains    Biome = "plains"
	BiomeForest    Biome = "forest"
	BiomeDesert    Biome = "desert"
	BiomeSnowy     Biome = "snowy"
	BiomeMountains Biome = "mountains"
	BiomeBadlands  Biome = "badlands"
	BiomeSwamp     Biome = "swamp"
)

func Biomes() []Biome {
	return []Biome{BiomePlains, BiomeForest, BiomeDesert, BiomeSnowy, BiomeMountains, BiomeBadlands, BiomeSwamp}
}

func ParseBiome(s string) (Biome, error) {
	b := Biome(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := recipes[b]; ok {
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBiome, s)
}

// treeStyle is a trunk/canopy block pair with a trunk height range.
type treeStyle struct {
	log, leaves       string
	minHeight, spread int
	canopyRadius      int
}

// Recipe is the per-biome material stack and decoration palette.
type Recipe struct {
	Surface         string
	Subsurface      string
	SubsurfaceDepth int
	Base            string

	trees   []treeStyle
	flowers []string
	grass   string
	// Arid biomes grow cactus and dead bushes instead of trees and flowers.
	arid bool
}

var (
	oak    = treeStyle{log: "oak_log", leaves: "oak_leaves", minHeight: 4, spread: 3, canopyRadius: 2}
	birch  = treeStyle{log: "birch_log", leaves: "birch_leaves", minHeight: 5, spread: 2, canopyRadius: 2}
	spruce = treeStyle{log: "spruce_log", leaves: "spruce_leaves", minHeight: 6, spread: 3, canopyRadius: 2}
)

var recipes = map[Biome]Recipe{
	BiomePlains: {
		Surface: "grass_block", Subsurface: "dirt", SubsurfaceDepth: 3, Base: "stone",
		trees: []treeStyle{oak}, flowers: []string{"dandelion", "poppy", "oxeye_daisy"}, grass: "short_grass",
	},
	BiomeForest: {
		Surface: "grass_block", Subsurface: "dirt", SubsurfaceDepth: 4, Base: "stone",
		trees: []treeStyle{oak, birch}, flowers: []string{"poppy", "cornflower"}, grass: "short_grass",
	},
	BiomeDesert: {
		Surface: "sand", Subsurface: "sandstone", SubsurfaceDepth: 4, Base: "stone",
		arid: true,
	},
	BiomeSnowy: {
		Surface: "snow_block", Subsurface: "dirt", SubsurfaceDepth: 3, Base: "stone",
		trees: []treeStyle{spruce},
	},
	BiomeMountains: {
		Surface: "stone", Subsurface: "stone", SubsurfaceDepth: 1, Base: "stone",
		trees: []treeStyle{spruce}, grass: "short_grass",
	},
	BiomeBadlands: {
		Surface: "red_sand", Subsurface: "terracotta", SubsurfaceDepth: 6, Base: "stone",
		arid: true,
	},
	BiomeSwamp: {
		Surface: "grass_block", Subsurface: "dirt", SubsurfaceDepth: 2, Base: "stone",
		trees: []treeStyle{oak}, flowers: []string{"blue_orchid"}, grass: "short_grass",
	},
}

func RecipeFor(b Biome) (Recipe, error) {
	r, ok := recipes[b]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %q", ErrUnknownBiome, string(b))
	}
	return r, nil
}
