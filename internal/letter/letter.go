// Package letter renders cover-letter templates: {a|b|c} random-choice
// groups and %name% variable substitution.
package letter

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// DefaultTemplate is the cover letter used until the user writes their
// own. Randomized phrasing keeps repeated applications from looking
// machine-generated.
const DefaultTemplate = "{Здравствуйте|Добрый день|Приветствую}! {Меня заинтересовала|Понравилась} ваша {вакансия|позиция} %vacancyName%. {Мои компетенции соответствуют требованиям|Уверен в своих силах, основываясь на опыте|Я обладаю всем необходимым}, чтобы {эффективно|успешно} {выполнять|исполнять} {поставленные задачи|ваши требования}. {С радостью обсужу детали|С нетерпением жду возможности пообщаться|Готов ответить на вопросы} {на собеседовании|в удобное для вас время}. {С уважением|С наилучшими пожеланиями|Благодарю за внимание}, %firstName%."

// groupRe matches the first non-nested {...} group: no inner braces.
var groupRe = regexp.MustCompile(`\{[^{}]*\}`)

// Expand resolves every {a|b|c} group left to right, picking one
// alternative uniformly at random (an empty group resolves to the
// empty string), then substitutes %name% tokens for every key present
// in vars. Unresolved %name% tokens and unbalanced braces are left
// verbatim. Deterministic given a fixed rng.
func Expand(template string, vars map[string]string, rng *rand.Rand) string {
	result := template
	for {
		loc := groupRe.FindStringIndex(result)
		if loc == nil {
			break
		}
		inner := result[loc[0]+1 : loc[1]-1]
		var choice string
		if inner != "" {
			alts := strings.Split(inner, "|")
			choice = strings.TrimSpace(alts[rng.IntN(len(alts))])
		}
		result = result[:loc[0]] + choice + result[loc[1]:]
	}

	for name, value := range vars {
		result = strings.ReplaceAll(result, "%"+name+"%", value)
	}
	return result
}
