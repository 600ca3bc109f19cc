package jobs

import "github.com/cuongbtq/helpdesk-be/internal/storage"

func storageFilter(queueName string) storage.JobFilter {
	return storage.JobFilter{Queue: queueName, PageSize: 100}
}
