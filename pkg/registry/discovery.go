package registry

import (
	"sort"

	"github.com/hewenyu/modularity/pkg/model"
)

// Discover 按能力要求对活跃服务排序
//
// required必须全部满足，得分为|required| + |optional ∩ capabilities|。
// 结果按得分降序，得分相同时按服务ID升序。输入中的重复能力名被忽略。
func (r *Registry) Discover(required, optional []string) []model.Match {
	req := toSet(required)
	opt := toSet(optional)

	r.mu.RLock()
	matches := make([]model.Match, 0)
	for _, svc := range r.services {
		if !svc.IsActive() {
			continue
		}
		caps := toSet(svc.Capabilities)

		satisfied := true
		for c := range req {
			if _, ok := caps[c]; !ok {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}

		matchedOptional := make([]string, 0)
		for c := range opt {
			if _, ok := caps[c]; ok {
				matchedOptional = append(matchedOptional, c)
			}
		}
		sort.Strings(matchedOptional)

		matches = append(matches, model.Match{
			Service:          svc.Clone(),
			MatchScore:       len(req) + len(matchedOptional),
			ProvidesRequired: sortedKeys(req),
			ProvidesOptional: matchedOptional,
		})
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MatchScore != matches[j].MatchScore {
			return matches[i].MatchScore > matches[j].MatchScore
		}
		return matches[i].Service.ID < matches[j].Service.ID
	})
	return matches
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
