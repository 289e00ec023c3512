package words

// Defaults seed an empty store so a fresh install can play immediately.
var Defaults = []string{
	"apple", "banana", "bicycle", "bridge", "butterfly", "cactus", "camera",
	"candle", "castle", "cat", "clock", "cloud", "dog", "dragon", "elephant",
	"fish", "flower", "guitar", "hammer", "house", "island", "kite", "ladder",
	"lighthouse", "moon", "mountain", "octopus", "pizza", "rainbow", "robot",
	"rocket", "snowman", "spider", "sun", "tree", "umbrella", "volcano", "whale",
}
