package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

const (
	// maxDisplayIDRetries 展示编号撞号重试次数
	maxDisplayIDRetries = 3
	// maxVersionRetries 乐观锁冲突重试次数
	maxVersionRetries = 3
)

// createWithDisplayID 以顺序展示编号创建实体。
//
// "取最大值加一" 在并发下会撞唯一索引，撞号换号重试；重试耗尽后退化为
// 毫秒时间戳编号。时间戳位数多于零填充的顺序编号，字典序仍排在其后，
// 后续的 "取最大值" 会基于它继续。
func createWithDisplayID(ctx context.Context, prefix string,
	next func(context.Context) (string, error),
	create func(displayID string) error) error {

	for i := 0; i < maxDisplayIDRetries; i++ {
		id, err := next(ctx)
		if err != nil {
			return err
		}
		err = create(id)
		if err == nil {
			return nil
		}
		if !repository.IsDuplicateKeyError(err) {
			return err
		}
		logger.Warn("display id collision, retrying",
			zap.String("display_id", id),
			zap.Int("attempt", i+1))
	}
	return create(fmt.Sprintf("%s%d", prefix, time.Now().UnixMilli()))
}
