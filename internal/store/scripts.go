package store

import (
	"content-calendar/internal/model"

	"github.com/redis/go-redis/v9"
)

// conditionalUpdateScript patches every entry in KEYS whose status is in
// ARGV[1]. ARGV[2] holds the fields to set, ARGV[3] the fields to clear and
// ARGV[4] the new updated_at. Clears run before sets, as in Patch.Apply.
// Returns the rewritten documents in KEYS order.
var conditionalUpdateScript = redis.NewScript(`
local expected = {}
for _, status in ipairs(cjson.decode(ARGV[1])) do
  expected[status] = true
end
local set = cjson.decode(ARGV[2])
local clear = cjson.decode(ARGV[3])

local out = {}
for _, key in ipairs(KEYS) do
  local raw = redis.call('GET', key)
  if raw then
    local doc = cjson.decode(raw)
    if expected[doc.status] then
      for _, field in ipairs(clear) do
        doc[field] = nil
      end
      for field, value in pairs(set) do
        doc[field] = value
      end
      doc.updated_at = ARGV[4]
      local encoded = cjson.encode(doc)
      redis.call('SET', key, encoded)
      out[#out + 1] = encoded
    end
  end
end
return out
`)

// deleteScript removes KEYS[1] unless its status is ARGV[2], releasing its
// keyword in KEYS[2] and its slot in KEYS[3]. Returns 1 when deleted, 0 when
// missing and -1 when refused.
var deleteScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local doc = cjson.decode(raw)
if doc.status == ARGV[2] then
  return -1
end
redis.call('DEL', KEYS[1])
if redis.call('HGET', KEYS[2], doc.keyword) == ARGV[1] then
  redis.call('HDEL', KEYS[2], doc.keyword)
end
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

// patchDocument translates p into the JSON fields the update script writes.
// Field names match the json tags on model.Entry.
func patchDocument(p model.Patch) (map[string]any, []string) {
	set := map[string]any{}
	clear := []string{}

	if p.ClearPlannedDate {
		clear = append(clear, "planned_date")
	}
	if p.ClearApproval {
		clear = append(clear, "approved_at", "approved_by")
	}

	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.PlannedDate != nil {
		set["planned_date"] = *p.PlannedDate
	}
	if p.ApprovedAt != nil {
		set["approved_at"] = *p.ApprovedAt
	}
	if p.ApprovedBy != nil {
		set["approved_by"] = *p.ApprovedBy
	}
	if p.DeclineReason != nil {
		set["decline_reason"] = *p.DeclineReason
	}
	if p.ErrorMessage != nil {
		set["error_message"] = *p.ErrorMessage
	}
	if p.GenerationStartedAt != nil {
		set["generation_started_at"] = *p.GenerationStartedAt
	}
	if p.ArticleType != nil {
		set["article_type"] = *p.ArticleType
	}
	if p.SearchVolume != nil {
		set["search_volume"] = *p.SearchVolume
	}
	if p.SearchVolumeSource != nil {
		set["search_volume_source"] = *p.SearchVolumeSource
	}
	if p.Difficulty != nil {
		set["difficulty"] = *p.Difficulty
	}
	if p.DifficultySource != nil {
		set["difficulty_source"] = *p.DifficultySource
	}
	if p.CompetitorCount != nil {
		set["competitor_count"] = *p.CompetitorCount
	}
	if p.CompetitorCountSource != nil {
		set["competitor_count_source"] = *p.CompetitorCountSource
	}
	if p.PriorityScore != nil {
		set["priority_score"] = *p.PriorityScore
	}
	if p.QualityScore != nil {
		set["quality_score"] = *p.QualityScore
	}
	return set, clear
}
