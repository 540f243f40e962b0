package collection

import "sort"

// completeHistoryScanning runs both history stages over every item carrying
// a marker tag.
func (r *scanRun) completeHistoryScanning() {
	if r.history == nil {
		return
	}

	ids, err := r.catalog.GetItemIDsInTag(TagNeedResolvingHistory)
	if err != nil {
		r.logger.Warn("listing items with unresolved history", "error", err)
	} else {
		r.historyScanningStage2(ids)
	}

	if !r.checkObserver() {
		return
	}

	ids, err = r.catalog.GetItemIDsInTag(TagNeedTaggingHistoryGraph)
	if err != nil {
		r.logger.Warn("listing items needing history tagging", "error", err)
		return
	}
	r.historyScanningStage3(ids)
}

// finishHistoryScanning runs both history stages over the items this
// session recorded.
func (r *scanRun) finishHistoryScanning() {
	if r.history == nil {
		return
	}

	ids := sortedIDs(r.needResolveHistory)
	r.needResolveHistory = make(map[int64]struct{})
	r.historyScanningStage2(ids)

	if !r.checkObserver() {
		return
	}

	ids = sortedIDs(r.needTaggingHistory)
	r.needTaggingHistory = make(map[int64]struct{})
	r.historyScanningStage3(ids)
}

// historyScanningStage2 resolves raw history descriptions into relations,
// one transaction per item.
func (r *scanRun) historyScanningStage2(ids []int64) {
	for _, id := range ids {
		if !r.checkObserver() {
			return
		}
		err := r.catalog.InTransaction(func(c Catalog) error {
			needTagging, err := r.history.ResolveHistory(c, id)
			if err != nil {
				return err
			}
			if r.recordHistoryIDs {
				for _, t := range needTagging {
					r.needTaggingHistory[t] = struct{}{}
				}
			}
			return nil
		})
		if err != nil {
			r.logger.Warn("resolving history", "id", id, "error", err)
		}
	}
}

// historyScanningStage3 tags the history graph of each item.
func (r *scanRun) historyScanningStage3(ids []int64) {
	for _, id := range ids {
		if !r.checkObserver() {
			return
		}
		err := r.catalog.InTransaction(func(c Catalog) error {
			return r.history.TagHistoryGraph(c, id)
		})
		if err != nil {
			r.logger.Warn("tagging history graph", "id", id, "error", err)
		}
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
