package riddle

import "github.com/memecoinsphinx/sphinx/internal/domain"

// DefaultSubjects returns the built-in meme coin catalog.
func DefaultSubjects() []domain.Subject {
	return []domain.Subject{
		{ID: "DOGE", Hints: []string{
			"I am the original meme, born from a Shiba's smile",
			"A billionaire's posts make my tail wag",
			"Much wow, such coin, very crypto",
		}},
		{ID: "PEPE", Hints: []string{
			"Born from the rarest of images, I bring joy to the web",
			"Green is my color, chaos is my game",
			"From imageboards to blockchain, I am the face of resistance",
		}},
		{ID: "SHIB", Hints: []string{
			"I followed in the pawsteps of the original",
			"They call me the DOGE killer",
			"My army grows stronger with each passing day",
		}},
		{ID: "BONK", Hints: []string{
			"I was dropped from the sky onto a fast chain's faithful",
			"My name is the sound of a playful strike on the head",
			"A Shiba once more, but I run where Solana flows",
		}},
		{ID: "WOJAK", Hints: []string{
			"I am the face of feelings, drawn in a single line",
			"When the chart goes red, my tears are famous",
			"Before I was a coin, I was every sad trader you know",
		}},
		{ID: "FLOKI", Hints: []string{
			"I carry the name of a billionaire's puppy",
			"Vikings sail beneath my banner",
			"A dog of the north who dreams of Valhalla",
		}},
	}
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSubjects())
	if err != nil {
		panic("riddle: invalid built-in catalog: " + err.Error())
	}
	return c
}
