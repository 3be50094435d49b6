// Package signing 管理 EIP-712 签名任务的完整生命周期：入队、领取、执行、重试与结果持久化。
//
// 任务存储支持内存与 MySQL 两种实现，队列支持内存、Redis 与 RabbitMQ。
// Processor 从队列消费任务 ID，并通过 Executor 完成类型化数据哈希与签名。
package signing
