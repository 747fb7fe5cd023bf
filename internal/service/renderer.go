package service

import (
	"math/rand/v2"
	"sort"
	"strings"

	"post_drafter/internal/domain"
)

// DefaultCorpusCap bounds how many corpus overviews each prompt embeds.
const DefaultCorpusCap = 100

type Renderer struct {
	corpusCap int
}

func NewRenderer(corpusCap int) *Renderer {
	if corpusCap <= 0 {
		corpusCap = DefaultCorpusCap
	}
	return &Renderer{corpusCap: corpusCap}
}

// Render builds one request per selected task. The corpus is sampled once
// per batch from seed, so every request in the batch embeds the same list.
func (r *Renderer) Render(
	selected []domain.TaskRecord,
	corpus []string,
	tmpl domain.Template,
	model string,
	seed uint64,
) []domain.GenerationRequest {
	list := strings.Join(r.sample(corpus, seed), "\n")

	requests := make([]domain.GenerationRequest, 0, len(selected))
	for _, task := range selected {
		requests = append(requests, domain.GenerationRequest{
			CustomID: task.ID,
			Model:    model,
			System:   tmpl.System,
			Prompt:   expand(tmpl.Prompt, list, task.Overview),
		})
	}
	return requests
}

// sample draws min(len(corpus), cap) entries uniformly without replacement
// and returns them in corpus order.
func (r *Renderer) sample(corpus []string, seed uint64) []string {
	if len(corpus) <= r.corpusCap {
		return corpus
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	picked := rng.Perm(len(corpus))[:r.corpusCap]
	sort.Ints(picked)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = corpus[idx]
	}
	return out
}

// expand substitutes both placeholders in a single pass so text pulled in
// from tasks is never rescanned for placeholders.
func expand(prompt, list, element string) string {
	return strings.NewReplacer(
		domain.ListPlaceholder, list,
		domain.ElementPlaceholder, element,
	).Replace(prompt)
}
