package record

// Recalculate считает CGPA: взвешенное по кредитам среднее grade point
// по оценённым записям транскрипта. Пустой транскрипт (или транскрипт без
// оценённых курсов с кредитами) даёт 0.
func Recalculate(entries []TranscriptEntry) float64 {
	var weighted float64
	var credits int
	for _, e := range entries {
		if !e.Graded {
			continue
		}
		weighted += float64(e.Credits) * e.GradePoint
		credits += e.Credits
	}
	if credits == 0 {
		return 0
	}
	return weighted / float64(credits)
}

// Totals - выведенные из транскрипта итоги кредитного леджера.
type Totals struct {
	Attempted int
	Earned    int
	Skills    []string
}

// Tally суммирует кредиты и объединяет навыки по текущему транскрипту.
// attempted - все записи, earned - только зачтённые.
// Навыки идут в порядке первого появления, без повторов.
func Tally(entries []TranscriptEntry, passPoint float64) Totals {
	t := Totals{Skills: []string{}}
	seen := make(map[string]struct{})
	for _, e := range entries {
		t.Attempted += e.Credits
		if e.Passed(passPoint) {
			t.Earned += e.Credits
		}
		for _, tag := range e.SkillTags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			t.Skills = append(t.Skills, tag)
		}
	}
	return t
}
