package textextract

import "regexp"

// endedPatterns is a boolean OR: any single match flags the page as ended.
// Callers still report extracted amounts and dates for an ended page; they
// just mark the record inactive.
var endedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`募集(?:は)?終了`),
	regexp.MustCompile(`募集を終了(?:しました|いたしました)`),
	regexp.MustCompile(`受付(?:は)?終了(?:しました|いたしました)?`),
	regexp.MustCompile(`申請(?:の)?受付(?:は|を)終了`),
	regexp.MustCompile(`公募(?:は)?終了`),
	regexp.MustCompile(`令和[0-9]{1,2}年度.{0,20}募集.{0,10}終了`),
	regexp.MustCompile(`今年度の(?:募集|受付)は(?:ありません|行いません)`),
}

// IsRecruitmentEnded reports whether text contains a recruitment-closed
// notice.
func IsRecruitmentEnded(text string) bool {
	normalized := NormalizeText(text)
	for _, p := range endedPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}
